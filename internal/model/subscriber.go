package model

// Subscriber defaults applied to new chats and to unusable input.
const (
	DefaultEmoji     = "🟢"
	DefaultMinBuyUSD = 15.0
	DefaultStepUSD   = 3.0
	DefaultWhaleUSD  = 1000.0
)

// SubscriberConfig is one Telegram chat's alert preferences.
// ChatID is the identity; Mint can be rebound at any time.
type SubscriberConfig struct {
	ChatID       string  `json:"chat_id"`
	Mint         string  `json:"mint"`
	Emoji        string  `json:"emoji"`
	MinBuyUSD    float64 `json:"min_buy_usd"`
	StepUSD      float64 `json:"step_usd"`
	WhaleUSD     float64 `json:"whale_usd"`
	WhaleOn      bool    `json:"whale_on"`
	Website      string  `json:"website,omitempty"`
	Twitter      string  `json:"twitter,omitempty"`
	BannerFileID string  `json:"banner_file_id,omitempty"`
}

// NewSubscriberConfig returns a config for chatID with every field at its default.
func NewSubscriberConfig(chatID string) SubscriberConfig {
	return SubscriberConfig{
		ChatID:    chatID,
		Emoji:     DefaultEmoji,
		MinBuyUSD: DefaultMinBuyUSD,
		StepUSD:   DefaultStepUSD,
		WhaleUSD:  DefaultWhaleUSD,
		WhaleOn:   true,
	}
}
