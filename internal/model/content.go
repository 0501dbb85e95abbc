package model

import "strings"

type ContentType uint8

const (
	ContentUnknown ContentType = 0x00
	ContentText    ContentType = 0x01
	ContentFile    ContentType = 0x10
	ContentImage   ContentType = 0x12
	ContentAudio   ContentType = 0x14
	ContentVideo   ContentType = 0x16
	ContentCommand ContentType = 0x88
	ContentForward ContentType = 0xFF
)

const (
	HandshakeSuccess = "success"
	HandshakeAgain   = "again"

	StateBackground = "background"
	StateForeground = "foreground"

	TitleReport = "report"
	TitleAPNs   = "apns"
)

type (
	// Content is the decrypted payload. Commands use a flat key/value layout
	// keyed by Command; unused fields stay empty.
	Content struct {
		Type    ContentType `json:"type"`
		SN      uint32      `json:"sn,omitempty"`
		Group   ID          `json:"group,omitempty"`
		Command string      `json:"command,omitempty"`
		Text    string      `json:"text,omitempty"`
		Message string      `json:"message,omitempty"`

		// handshake
		Session string `json:"session,omitempty"`

		// meta / profile
		ID      ID       `json:"ID,omitempty"`
		Meta    *Meta    `json:"meta,omitempty"`
		Profile *Profile `json:"profile,omitempty"`

		// users / search
		Users    []ID         `json:"users,omitempty"`
		Results  map[ID]*Meta `json:"results,omitempty"`
		Keywords string       `json:"keywords,omitempty"`
		Keyword  string       `json:"keyword,omitempty"`
		KW       string       `json:"kw,omitempty"`

		// broadcast
		Title       string `json:"title,omitempty"`
		State       string `json:"state,omitempty"`
		DeviceToken string `json:"device_token,omitempty"`

		// mute / block; nil means query
		List []ID `json:"list,omitempty"`

		// receipt
		Sender    ID     `json:"sender,omitempty"`
		Receiver  ID     `json:"receiver,omitempty"`
		Time      int64  `json:"time,omitempty"`
		Signature []byte `json:"signature,omitempty"`
	}
)

// CommandKind is the closed set of commands a station understands.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandHandshake
	CommandMeta
	CommandProfile
	CommandUsers
	CommandSearch
	CommandBroadcast
	CommandMute
	CommandBlock
	CommandReceipt
)

var commandNames = map[string]CommandKind{
	"handshake": CommandHandshake,
	"meta":      CommandMeta,
	"profile":   CommandProfile,
	"users":     CommandUsers,
	"search":    CommandSearch,
	"broadcast": CommandBroadcast,
	"mute":      CommandMute,
	"block":     CommandBlock,
	"receipt":   CommandReceipt,
}

func ParseCommand(name string) CommandKind {
	if k, ok := commandNames[name]; ok {
		return k
	}
	return CommandUnknown
}

func (c *Content) Kind() CommandKind {
	if c.Type != ContentCommand {
		return CommandUnknown
	}
	return ParseCommand(c.Command)
}

// SearchKeywords reads keywords, keyword or kw (in that order) and splits on spaces.
func (c *Content) SearchKeywords() []string {
	kw := c.Keywords
	if kw == "" {
		kw = c.Keyword
	}
	if kw == "" {
		kw = c.KW
	}
	if kw == "" {
		return nil
	}

	var res []string
	for _, k := range strings.Split(kw, " ") {
		if k != "" {
			res = append(res, k)
		}
	}
	return res
}

func NewCommand(command string) *Content {
	return &Content{Type: ContentCommand, Command: command}
}

func NewText(text string) *Content {
	return &Content{Type: ContentText, Text: text}
}

func NewReceipt(message string) *Content {
	c := NewCommand("receipt")
	c.Message = message
	return c
}

func NewHandshake(session string) *Content {
	c := NewCommand("handshake")
	c.Session = session
	return c
}

func HandshakeSucceeded() *Content {
	c := NewCommand("handshake")
	c.Message = HandshakeSuccess
	return c
}

func HandshakeRetry(session string) *Content {
	c := NewHandshake(session)
	c.Message = HandshakeAgain
	return c
}
