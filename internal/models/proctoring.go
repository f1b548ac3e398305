package models

type SecurityEventType string

const (
	EventTabSwitch               SecurityEventType = "tab_switch"
	EventWarning                 SecurityEventType = "warning"
	EventScreenRecordingDetected SecurityEventType = "screen_recording_detected"
	EventCopyPasteAttempt        SecurityEventType = "copy_paste_attempt"
)

// SecurityEventTypes lists every event type a client may report.
var SecurityEventTypes = []SecurityEventType{
	EventTabSwitch,
	EventWarning,
	EventScreenRecordingDetected,
	EventCopyPasteAttempt,
}

func (t SecurityEventType) IsValid() bool {
	for _, known := range SecurityEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Defaults applied when a scheduling request omits a limit.
const (
	DefaultTabSwitchLimit = 3
	DefaultWarningLimit   = 5
)

// SecurityConfig is the anti-cheating policy attached to a session at scheduling time.
// No gorm defaults on the booleans: false is a meaningful value and must be written.
type SecurityConfig struct {
	TabSwitchLimit           int  `json:"tab_switch_limit" gorm:"not null"`
	WarningLimit             int  `json:"warning_limit" gorm:"not null"`
	TimeExtensionAllowed     bool `json:"time_extension_allowed" gorm:"not null"`
	CopyPasteDisabled        bool `json:"copy_paste_disabled" gorm:"not null"`
	ScreenRecordingDetection bool `json:"screen_recording_detection" gorm:"not null"`
}

// DefaultSecurityConfig mirrors the limits the proctoring client assumes when none are configured.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		TabSwitchLimit:           DefaultTabSwitchLimit,
		WarningLimit:             DefaultWarningLimit,
		TimeExtensionAllowed:     false,
		CopyPasteDisabled:        true,
		ScreenRecordingDetection: true,
	}
}
