// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
)

// Profile is the public profile of an account.
type Profile struct {
	Owner       common.Address
	Avatar      string
	SocialLinks string
	Description string
	Exists      bool
	CreatedAt   uint64
}

// Created returns the creation time.
func (p *Profile) Created() time.Time {
	return time.Unix(int64(p.CreatedAt), 0).UTC()
}

// HasInlineAvatar reports whether the avatar is an inline data URI.
func (p *Profile) HasInlineAvatar() bool {
	return IsInlineAvatar(p.Avatar)
}

// Links parses the stored social links.
func (p *Profile) Links() map[string]string {
	return ParseSocialLinks(p.SocialLinks)
}

// IsInlineAvatar reports whether avatar is a data URI rather than a link.
func IsInlineAvatar(avatar string) bool {
	return strings.HasPrefix(avatar, "data:")
}

// ParseSocialLinks decodes a platform -> URL mapping. Malformed input,
// including valid JSON of the wrong shape, yields an empty mapping. Entries
// whose value is not a string are dropped.
func ParseSocialLinks(raw string) map[string]string {
	links := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return links
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return links
	}
	for platform, v := range decoded {
		if url, ok := v.(string); ok {
			links[platform] = url
		}
	}
	return links
}
