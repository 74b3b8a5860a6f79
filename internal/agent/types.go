// Package agent provisions and releases the remote conversational agent.
package agent

// RTC uids the agent platform joins the channel with. The browser needs to
// know which uid carries the avatar video versus the synthesized audio.
const (
	AgentRTCUID  = "10001"
	AvatarRTCUID = "10002"
)

// Settings carries everything needed to compose a provisioning request.
type Settings struct {
	BaseURL      string // agent platform REST base, e.g. https://api.agora.io
	AppID        string
	RESTKey      string
	RESTSecret   string
	IdleTimeout  int // seconds before an unattended agent leaves
	ASRLanguage  string
	LLMURL       string
	LLMKey       string
	LLMModel     string
	SystemPrompt string
	Greeting     string
	TTSURL       string
	TTSGroupID   string
	TTSKey       string
	TTSModel     string
	TTSVoiceID   string
	AvatarKey    string
	AvatarID     string
}

// joinRequest is the agent platform's join payload.
type joinRequest struct {
	Name       string         `json:"name"`
	Properties joinProperties `json:"properties"`
}

type joinProperties struct {
	Channel          string           `json:"channel"`
	AgentRTCUID      string           `json:"agent_rtc_uid"`
	RemoteRTCUIDs    []string         `json:"remote_rtc_uids"`
	IdleTimeout      int              `json:"idle_timeout"`
	AdvancedFeatures advancedFeatures `json:"advanced_features"`
	ASR              asrConfig        `json:"asr"`
	LLM              llmConfig        `json:"llm"`
	TTS              ttsConfig        `json:"tts"`
	Avatar           avatarConfig     `json:"avatar"`
}

type advancedFeatures struct {
	// Voice activity detection stays off so the agent speaks its greeting
	// without waiting for the user to talk first.
	EnableAIVAD bool `json:"enable_aivad"`
}

type asrConfig struct {
	Language string `json:"language"`
}

type llmConfig struct {
	URL            string          `json:"url"`
	APIKey         string          `json:"api_key"`
	SystemMessages []systemMessage `json:"system_messages"`
	Greeting       string          `json:"greeting_message"`
	FailureMessage string          `json:"failure_message"`
	Params         llmParams       `json:"params"`
}

type systemMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmParams struct {
	Model string `json:"model"`
}

type ttsConfig struct {
	Vendor string    `json:"vendor"`
	Params ttsParams `json:"params"`
}

type ttsParams struct {
	URL          string       `json:"url"`
	GroupID      string       `json:"group_id"`
	Key          string       `json:"key"`
	Model        string       `json:"model"`
	VoiceSetting voiceSetting `json:"voice_setting"`
	AudioSetting audioSetting `json:"audio_setting"`
}

type voiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Volume  float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
	Emotion string  `json:"emotion"`
}

type audioSetting struct {
	SampleRate int `json:"sample_rate"`
}

type avatarConfig struct {
	Vendor string       `json:"vendor"`
	Enable bool         `json:"enable"`
	Params avatarParams `json:"params"`
}

type avatarParams struct {
	APIKey   string `json:"api_key"`
	AgoraUID string `json:"agora_uid"`
	AvatarID string `json:"avatar_id"`
}

// joinResponse is the success envelope; agent_id is the opaque handle used
// to release the agent later. Its absence is failure even on a 2xx response.
type joinResponse struct {
	AgentID string `json:"agent_id"`
	Detail  string `json:"detail,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
