// Package settings persists dashboard preferences, including the AI provider
// override applied to the gateway.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/logger"
	"github.com/zen-systems/pulseboard/pkg/store"
)

// StorageKey is where the settings blob lives.
const StorageKey = "dashboard-settings-v1"

type ContextLevel string

const (
	ContextMinimal  ContextLevel = "minimal"
	ContextStandard ContextLevel = "standard"
	ContextDetailed ContextLevel = "detailed"
)

type ResponseLength string

const (
	LengthConcise       ResponseLength = "concise"
	LengthBalanced      ResponseLength = "balanced"
	LengthComprehensive ResponseLength = "comprehensive"
)

// Settings is the complete saved state.
type Settings struct {
	AI            AI            `json:"ai"`
	Dashboard     Dashboard     `json:"dashboard"`
	Appearance    Appearance    `json:"appearance"`
	Notifications Notifications `json:"notifications"`
}

// AI holds assistant preferences. An empty Model means the provider default.
type AI struct {
	Provider       adapter.Provider `json:"provider"`
	Model          string           `json:"model,omitempty"`
	ContextLevel   ContextLevel     `json:"contextLevel"`
	ResponseLength ResponseLength   `json:"responseLength"`
	Streaming      bool             `json:"streaming"`
	Temperature    float64          `json:"temperature"`
}

type Widgets struct {
	Metrics      bool `json:"metrics"`
	RevenueChart bool `json:"revenueChart"`
	OrdersChart  bool `json:"ordersChart"`
	TopProducts  bool `json:"topProducts"`
	RegionChart  bool `json:"regionChart"`
	RecentOrders bool `json:"recentOrders"`
}

type Dashboard struct {
	Widgets          Widgets `json:"widgets"`
	DefaultChartView string  `json:"defaultChartView"`
	// RefreshInterval is in minutes; 0 disables auto-refresh.
	RefreshInterval int  `json:"refreshInterval"`
	CompactMode     bool `json:"compactMode"`
}

type Appearance struct {
	Theme          string `json:"theme"`
	AccentColor    string `json:"accentColor"`
	FontSize       string `json:"fontSize"`
	ReducedMotion  bool   `json:"reducedMotion"`
	ShowAnimations bool   `json:"showAnimations"`
}

type NotificationTypes struct {
	Insight bool `json:"insight"`
	Success bool `json:"success"`
	Warning bool `json:"warning"`
	Info    bool `json:"info"`
}

type Notifications struct {
	Enabled              bool              `json:"enabled"`
	Types                NotificationTypes `json:"types"`
	SoundEnabled         bool              `json:"soundEnabled"`
	DesktopNotifications bool              `json:"desktopNotifications"`
}

// Defaults returns factory settings with provider as the AI backend.
func Defaults(provider adapter.Provider) Settings {
	return Settings{
		AI: AI{
			Provider:       provider,
			ContextLevel:   ContextStandard,
			ResponseLength: LengthBalanced,
			Streaming:      true,
			Temperature:    0.7,
		},
		Dashboard: Dashboard{
			Widgets: Widgets{
				Metrics:      true,
				RevenueChart: true,
				OrdersChart:  true,
				TopProducts:  true,
				RegionChart:  true,
				RecentOrders: true,
			},
			DefaultChartView: "monthly",
		},
		Appearance: Appearance{
			Theme:          "dark",
			AccentColor:    "#06b6d4",
			FontSize:       "medium",
			ShowAnimations: true,
		},
		Notifications: Notifications{
			Enabled: true,
			Types:   NotificationTypes{Insight: true, Success: true, Warning: true, Info: true},
		},
	}
}

// Load returns the saved settings merged over Defaults(provider). Fields the
// saved blob does not mention keep their defaults. Missing or unreadable data
// yields the defaults.
func Load(kv store.Store, provider adapter.Provider) Settings {
	s := Defaults(provider)
	data, err := kv.Get(StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return s
	}
	if err != nil {
		logger.Log.WithError(err).Warn("failed to read settings")
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Log.WithFields(logrus.Fields{"key": StorageKey}).WithError(err).Warn("failed to parse saved settings")
		return Defaults(provider)
	}
	if _, err := adapter.ParseProvider(string(s.AI.Provider)); err != nil {
		logger.Log.WithField("provider", s.AI.Provider).Warn("ignoring unknown saved provider")
		s.AI.Provider = provider
	}
	return s
}

// Save writes the settings.
func Save(kv store.Store, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := kv.Set(StorageKey, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Clear removes the saved settings.
func Clear(kv store.Store) {
	if err := kv.Delete(StorageKey); err != nil {
		logger.Log.WithError(err).Warn("failed to clear settings")
	}
}

// Validate checks the fields other components act on.
func (s Settings) Validate() error {
	if _, err := adapter.ParseProvider(string(s.AI.Provider)); err != nil {
		return err
	}
	if s.AI.Temperature < 0 || s.AI.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %v", s.AI.Temperature)
	}
	if s.Dashboard.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	if !strings.HasPrefix(s.Appearance.AccentColor, "#") {
		return fmt.Errorf("accent color must be a hex value, got %q", s.Appearance.AccentColor)
	}
	return nil
}
