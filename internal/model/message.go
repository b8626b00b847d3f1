package model

// MessageKind distinguishes the per-subscriber messages of one event.
type MessageKind string

const (
	KindStandard MessageKind = "standard"
	KindWhale    MessageKind = "whale"
)

// Button is an inline keyboard URL button.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Message is a rendered notification addressed to one chat.
// Text is Telegram MarkdownV2. When PhotoID is set the message is sent as a
// photo with Text as its caption.
type Message struct {
	ChatID  string      `json:"chat_id"`
	Kind    MessageKind `json:"kind"`
	Text    string      `json:"text"`
	PhotoID string      `json:"photo_id,omitempty"`
	Buttons [][]Button  `json:"buttons,omitempty"`
}
