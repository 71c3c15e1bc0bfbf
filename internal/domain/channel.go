package domain

import (
	"fmt"

	"github.com/JrMarcco/jsignage/internal/errs"
)

// Channel 投稿渠道（图片/文字/生日祝福）
type Channel string

const (
	ChannelImage    Channel = "image"
	ChannelText     Channel = "text"
	ChannelBirthday Channel = "birthday"
)

func (c Channel) String() string {
	return string(c)
}

func (c Channel) Validate() bool {
	return c == ChannelImage || c == ChannelText || c == ChannelBirthday
}

func (c Channel) IsImage() bool {
	return c == ChannelImage
}

func (c Channel) IsText() bool {
	return c == ChannelText
}

func (c Channel) IsBirthday() bool {
	return c == ChannelBirthday
}

// ParseChannel 解析渠道，未知渠道返回 errs.ErrInvalidChannel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Validate() {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidChannel, s)
	}
	return c, nil
}

// ChannelConfig 渠道开关配置，只允许整体替换。
//
// SystemEnabled 为 false 时所有渠道都视为关闭，不论各渠道自身的开关取值。
type ChannelConfig struct {
	SystemEnabled   bool `json:"system_enabled"`
	ImageEnabled    bool `json:"image_enabled"`
	TextEnabled     bool `json:"text_enabled"`
	BirthdayEnabled bool `json:"birthday_enabled"`
}

// IsOpen 判断渠道当前是否接受投稿
func (cc ChannelConfig) IsOpen(c Channel) bool {
	if !cc.SystemEnabled {
		return false
	}

	switch {
	case c.IsImage():
		return cc.ImageEnabled
	case c.IsText():
		return cc.TextEnabled
	case c.IsBirthday():
		return cc.BirthdayEnabled
	default:
		return false
	}
}

// Effective 返回消费方应当看到的开关状态
func (cc ChannelConfig) Effective() ChannelConfig {
	return ChannelConfig{
		SystemEnabled:   cc.SystemEnabled,
		ImageEnabled:    cc.IsOpen(ChannelImage),
		TextEnabled:     cc.IsOpen(ChannelText),
		BirthdayEnabled: cc.IsOpen(ChannelBirthday),
	}
}

// ConfigSnapshot 带版本号的渠道配置快照，版本号单调递增。
type ConfigSnapshot struct {
	ChannelConfig

	Version   uint64 `json:"version"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewerThan 判断当前快照是否比 other 新
func (s ConfigSnapshot) NewerThan(other ConfigSnapshot) bool {
	return s.Version > other.Version
}

// EffectiveSnapshot 返回推送给展示端的快照，渠道开关已按系统开关折算
func (s ConfigSnapshot) EffectiveSnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		ChannelConfig: s.Effective(),
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
	}
}
