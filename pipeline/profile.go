// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package pipeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/luxfi/veil"
)

const (
	MaxAvatarLength       = 10000
	MaxInlineAvatarLength = 5000
	MaxDescriptionLength  = 1000
	MaxAvatarFileSize     = 2 << 20

	emptySocialLinks = "{}"
)

// ProfileFields are the user-editable parts of a profile. SocialLinks is
// forwarded as an opaque string; it is not checked for well-formed JSON.
type ProfileFields struct {
	Avatar      string `validate:"max=10000"`
	SocialLinks string
	Description string `validate:"max=1000"`
}

// normalize applies the local guards and defaults. It never touches the
// network.
func (f ProfileFields) normalize(validate *validator.Validate) (ProfileFields, error) {
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return f, veil.Errorf(veil.KindValidation,
				"%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param(),
			)
		}
		return f, veil.NewError(veil.KindValidation, "", err)
	}
	// the ledger stores avatars inline, so the cap applies to URLs too
	if len(f.Avatar) > MaxInlineAvatarLength {
		if veil.IsInlineAvatar(f.Avatar) {
			return f, veil.Errorf(veil.KindValidation, "avatar data too large, use a URL or a smaller image")
		}
		return f, veil.Errorf(veil.KindValidation, "avatar must be at most %d characters", MaxInlineAvatarLength)
	}
	if strings.TrimSpace(f.SocialLinks) == "" {
		f.SocialLinks = emptySocialLinks
	}
	return f, nil
}

// AvatarFromFile reads an image file into an inline data URI.
func AvatarFromFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxAvatarFileSize {
		return "", veil.Errorf(veil.KindValidation, "image must be smaller than 2MB")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return AvatarFromReader(f)
}

// AvatarFromReader reads at most MaxAvatarFileSize bytes of image data into
// an inline data URI.
func AvatarFromReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxAvatarFileSize {
		return "", veil.Errorf(veil.KindValidation, "image must be smaller than 2MB")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", veil.Errorf(veil.KindValidation, "please select an image file")
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
