package protocol

import (
	"encoding/json"
	"strconv"
)

// ParseFrame decodes one raw WebSocket text message into a Frame.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// IsCommandResponse reports whether f is a commandResponse frame.
func IsCommandResponse(f *Frame) bool {
	return f.Header.MessagePurpose == PurposeCommandResponse
}

// ParseCommandResponse decodes f's body as a CommandResponseBody. Callers
// should first check IsCommandResponse.
func ParseCommandResponse(f *Frame) (CommandResponseBody, error) {
	var body CommandResponseBody
	if len(f.Body) == 0 {
		return body, nil
	}
	err := json.Unmarshal(f.Body, &body)
	return body, err
}

// ResolveCommandResult turns a CommandResponseBody into the string a
// waiting command future is resolved with: statusCode 0 resolves to
// statusMessage (or a default success string); any other code resolves to
// an explanatory failure string.
func ResolveCommandResult(body CommandResponseBody) string {
	if body.StatusCode == 0 {
		if body.StatusMessage != "" {
			return body.StatusMessage
		}
		return "命令执行成功"
	}
	msg := body.StatusMessage
	if msg == "" {
		msg = "未知错误"
	}
	return commandFailurePrefix(body.StatusCode) + msg
}

func commandFailurePrefix(statusCode int) string {
	return "命令执行失败(statusCode=" + strconv.Itoa(statusCode) + "): "
}

// IsPlayerMessage reports whether f is a PlayerMessage event frame.
func IsPlayerMessage(f *Frame) bool {
	return f.Header.MessagePurpose == PurposeEvent && f.Header.EventNameValue() == EventPlayerMessage
}

// ParsePlayerMessage decodes f's body as a PlayerMessageBody. Callers
// should first check IsPlayerMessage.
func ParsePlayerMessage(f *Frame) (PlayerMessageBody, error) {
	var body PlayerMessageBody
	if len(f.Body) == 0 {
		return body, nil
	}
	err := json.Unmarshal(f.Body, &body)
	return body, err
}

// IsExternalDuplicate reports whether f is a PlayerMessage event whose
// sender is the literal "外部" marker, dropped when
// dedup_external_messages is enabled.
func IsExternalDuplicate(f *Frame, body PlayerMessageBody) bool {
	return IsPlayerMessage(f) && body.Sender == externalSender
}
