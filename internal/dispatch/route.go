// Package dispatch decides what each inbound event means for the user's
// current mode and carries the decision out.
package dispatch

import (
	"strings"

	"github.com/m3rciful/sushef/internal/session"
)

// EventKind classifies an inbound update.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventCallback
	EventPhoto
	EventDocument
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventPhoto:
		return "photo"
	case EventDocument:
		return "document"
	case EventText:
		return "text"
	}
	return "unknown"
}

// Command names, without the leading slash.
const (
	CommandStart     = "start"
	CommandSupply    = "supply"
	CommandDashboard = "dashboard"
	CommandState     = "state"
)

// Callback keys carried by the inline buttons. The spelling of the reset key
// is kept for keyboards already sitting in users' chats.
const (
	CallbackReset      = "comand_null"
	CallbackClearTable = "delete_table"
)

// MIMEJPEG marks a photo uploaded uncompressed as a file.
const MIMEJPEG = "image/jpeg"

// Event is one inbound update reduced to what routing needs.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64

	// Name is the command name or callback key.
	Name string
	// Args is the text following a command.
	Args string

	FileRef  string
	MIMEType string
	Text     string
}

// needsMode reports whether routing depends on the stored mode.
// Commands and buttons act the same in every mode.
func (e Event) needsMode() bool {
	switch e.Kind {
	case EventPhoto, EventDocument, EventText:
		return true
	}
	return false
}

// Action is what the dispatcher does in response to an event.
type Action int

const (
	ActionIgnore Action = iota
	ActionGreet
	ActionSupplyIntro
	ActionDashboardIntro
	ActionResetConfirm
	ActionClearDashboard
	ActionInspect
	ActionRelayPhoto
	ActionRelayPDF
	ActionRelayText
	ActionSearch
	ActionWrongMode
	ActionCompressHint
	ActionChooseCommand
)

var actionNames = map[Action]string{
	ActionIgnore:         "ignore",
	ActionGreet:          "greet",
	ActionSupplyIntro:    "supply_intro",
	ActionDashboardIntro: "dashboard_intro",
	ActionResetConfirm:   "reset_confirm",
	ActionClearDashboard: "clear_dashboard",
	ActionInspect:        "inspect",
	ActionRelayPhoto:     "relay_photo",
	ActionRelayPDF:       "relay_pdf",
	ActionRelayText:      "relay_text",
	ActionSearch:         "search",
	ActionWrongMode:      "wrong_mode",
	ActionCompressHint:   "compress_hint",
	ActionChooseCommand:  "choose_command",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Decision is the outcome of Route.
type Decision struct {
	Action Action
	// Next is the mode to persist; it is meaningful only when Switch is set.
	Next   session.Mode
	Switch bool
}

func stay(a Action) Decision { return Decision{Action: a} }

func switchTo(a Action, m session.Mode) Decision {
	return Decision{Action: a, Next: m, Switch: true}
}

// NextMode returns the mode the user is in after the decision is applied.
func (d Decision) NextMode(current session.Mode) session.Mode {
	if d.Switch {
		return d.Next
	}
	return current
}

// Route maps an event and the user's current mode to a decision. It has no
// side effects.
func Route(ev Event, mode session.Mode) Decision {
	switch ev.Kind {
	case EventCommand:
		switch strings.ToLower(strings.TrimPrefix(ev.Name, "/")) {
		case CommandStart:
			return switchTo(ActionGreet, session.ModeIdle)
		case CommandSupply:
			return switchTo(ActionSupplyIntro, session.ModeSupply)
		case CommandDashboard:
			return switchTo(ActionDashboardIntro, session.ModeDashboard)
		case CommandState:
			return stay(ActionInspect)
		}
	case EventCallback:
		switch ev.Name {
		case CallbackReset:
			return switchTo(ActionResetConfirm, session.ModeIdle)
		case CallbackClearTable:
			return stay(ActionClearDashboard)
		}
	case EventPhoto:
		if mode != session.ModeSupply {
			return stay(ActionWrongMode)
		}
		return stay(ActionRelayPhoto)
	case EventDocument:
		if mode != session.ModeSupply {
			return stay(ActionWrongMode)
		}
		if strings.EqualFold(strings.TrimSpace(ev.MIMEType), MIMEJPEG) {
			return stay(ActionCompressHint)
		}
		return stay(ActionRelayPDF)
	case EventText:
		text := strings.TrimSpace(ev.Text)
		if text == "" || strings.HasPrefix(text, "/") {
			return stay(ActionIgnore)
		}
		switch mode {
		case session.ModeSupply:
			return stay(ActionRelayText)
		case session.ModeDashboard:
			return stay(ActionSearch)
		}
		return stay(ActionChooseCommand)
	}
	return stay(ActionIgnore)
}
