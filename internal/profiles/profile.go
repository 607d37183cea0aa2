package profiles

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	newUserDisplayName    = "New User"
	generatedUsernameStem = "user_"
)

// Profile is the application-level record kept alongside an auth identity.
type Profile struct {
	ID          string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID      string    `gorm:"column:user_id;size:190;not null;uniqueIndex" json:"user_id"`
	Email       string    `gorm:"column:email;size:320" json:"email"`
	Username    string    `gorm:"column:username;size:190;not null" json:"username"`
	DisplayName string    `gorm:"column:display_name;size:320" json:"display_name"`
	Bio         string    `gorm:"column:bio;type:text" json:"bio"`
	Avatar      string    `gorm:"column:avatar;size:1024" json:"avatar"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName exposes the table backing profiles.
func (Profile) TableName() string {
	return "profiles"
}

// DefaultsConfig controls how starter profiles are derived.
type DefaultsConfig struct {
	AvatarBaseURL string
	Clock         func() time.Time
}

// DefaultProfile builds the starter profile for a freshly authenticated user.
// The username and display name come from the email local part; without an
// email a time based username and a generic display name are used.
func DefaultProfile(userID, email string, cfg DefaultsConfig) Profile {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	email = strings.TrimSpace(email)
	localPart := emailLocalPart(email)

	username := localPart
	if username == "" {
		username = fmt.Sprintf("%s%d", generatedUsernameStem, clock().UnixMilli())
	}
	displayName := localPart
	if displayName == "" {
		displayName = newUserDisplayName
	}

	return Profile{
		UserID:      userID,
		Email:       email,
		Username:    username,
		DisplayName: displayName,
		Bio:         "",
		Avatar:      AvatarURL(cfg.AvatarBaseURL, username),
	}
}

// AvatarURL templates the seed into the avatar generation service URL.
func AvatarURL(baseURL, seed string) string {
	return strings.TrimSpace(baseURL) + "?seed=" + url.QueryEscape(seed)
}

func emailLocalPart(email string) string {
	if email == "" {
		return ""
	}
	localPart, _, _ := strings.Cut(email, "@")
	return localPart
}
