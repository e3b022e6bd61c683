package models

// Result is the success/error shape every action returns to the UI.
type Result struct {
	OK     bool              `json:"ok"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

const MsgNotAuthenticated = "Not authenticated"

func OK() Result { return Result{OK: true} }

func Fail(msg string) Result { return Result{OK: false, Error: msg} }

func NotAuthenticated() Result { return Fail(MsgNotAuthenticated) }
