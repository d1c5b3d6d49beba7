package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcbe-gateway/agent-gateway/internal/broker"
	"github.com/mcbe-gateway/agent-gateway/pkg/models"
)

// commandTimeout is the RPC inactivity timeout: a command future awaits
// for up to 10 seconds before giving up.
const commandTimeout = 10 * time.Second

const runCommandSchema = `{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "A Minecraft Bedrock Edition slash-less command line, e.g. \"give @s diamond\""}
  },
  "required": ["command"]
}`

type runCommandArgs struct {
	Command string `json:"command"`
}

// RunMinecraftCommandTool is the always-available tool that dispatches an
// MCBE command via the broker's response channel and awaits the matching
// commandResponse, surfaced back to the model as a one-shot string
// result.
type RunMinecraftCommandTool struct {
	broker *broker.Broker
}

// NewRunMinecraftCommandTool returns a tool bound to b, the broker whose
// response channels carry outbound commandRequest dispatches to
// internal/connection's sender loop.
func NewRunMinecraftCommandTool(b *broker.Broker) *RunMinecraftCommandTool {
	return &RunMinecraftCommandTool{broker: b}
}

func (t *RunMinecraftCommandTool) Name() string { return "run_minecraft_command" }

func (t *RunMinecraftCommandTool) Description() string {
	return "Runs a Minecraft Bedrock Edition command on the connected server and returns its response text."
}

func (t *RunMinecraftCommandTool) Schema() json.RawMessage {
	return json.RawMessage(runCommandSchema)
}

// Execute enqueues a ResponseRunCommand item on connID's response channel
// and blocks on the returned future for up to commandTimeout. A closed
// connection or expired timeout resolves to an explanatory string rather
// than an error: a command timeout never escalates to a tool-execution
// failure.
func (t *RunMinecraftCommandTool) Execute(ctx context.Context, connID string, params json.RawMessage) (*Result, error) {
	var args runCommandArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if args.Command == "" {
		return &Result{Content: "missing required argument: command", IsError: true}, nil
	}

	future := models.NewCommandFuture()
	item := models.ResponseItem{
		Type:         models.ResponseRunCommand,
		Command:      args.Command,
		RequestID:    uuid.NewString(),
		ResultFuture: future,
	}
	if !t.broker.SendResponse(connID, item) {
		return &Result{Content: "连接已关闭", IsError: true}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, ok := future.Wait(waitCtx)
	if !ok {
		const timeoutMsg = "命令响应超时"
		future.Resolve(timeoutMsg)
		return &Result{Content: timeoutMsg}, nil
	}
	return &Result{Content: result}, nil
}
