package domain

import (
	"fmt"
	"strings"
)

// Action is what an inline button asks for.
type Action string

const (
	ActionReset Action = "reset"
	ActionStop  Action = "stop"
)

const callbackPrefix = "npc"

// Callback is the decoded payload of an inline button: "npc:<kind>:<action>".
type Callback struct {
	Kind   Kind
	Action Action
}

// String encodes the callback as button data.
func (c Callback) String() string {
	return callbackPrefix + ":" + string(c.Kind) + ":" + string(c.Action)
}

// ParseCallback decodes button data. Only the closed set of kinds and actions
// is accepted; the kind must be upper-case exactly as encoded.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return Callback{}, fmt.Errorf("%w: %q", ErrInvalidCallback, data)
	}
	kind := Kind(parts[1])
	if !kind.Valid() {
		return Callback{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCallback, parts[1])
	}
	switch action := Action(parts[2]); action {
	case ActionReset, ActionStop:
		return Callback{Kind: kind, Action: action}, nil
	default:
		return Callback{}, fmt.Errorf("%w: unknown action %q", ErrInvalidCallback, parts[2])
	}
}

// ParseKindCommand splits "/train_c" style commands into verb and kind.
// Telegram may append "@botname", which is ignored.
func ParseKindCommand(text string) (verb string, kind Kind, err error) {
	cmd := strings.Fields(strings.TrimSpace(text))
	if len(cmd) == 0 || !strings.HasPrefix(cmd[0], "/") {
		return "", "", fmt.Errorf("not a command: %q", text)
	}
	name := strings.TrimPrefix(cmd[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	sep := strings.LastIndexByte(name, '_')
	if sep <= 0 {
		return "", "", fmt.Errorf("command %q has no kind suffix", name)
	}
	kind, err = ParseKind(name[sep+1:])
	if err != nil {
		return "", "", err
	}
	return name[:sep], kind, nil
}
