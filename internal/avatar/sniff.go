// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package avatar handles profile-picture validation and object storage.
package avatar

import (
	"bytes"

	"github.com/samber/oops"
)

// Accepted avatar content types.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

// CodeUnsupportedType marks an upload rejected by the content allow-list.
const CodeUnsupportedType = "AVATAR_UNSUPPORTED_TYPE"

// Magic byte prefixes per accepted type. The declared Content-Type header
// is not trusted; the payload itself decides.
var magicPrefixes = map[string][][]byte{
	MIMETypeJPEG: {[]byte("\xFF\xD8")},
	MIMETypePNG:  {[]byte("\x89\x50\x4E\x47\x0D\x0A\x1A\x0A")},
}

// SniffContentType determines the image type from leading magic bytes.
// Only jpeg and png are accepted.
func SniffContentType(data []byte) (string, error) {
	for mimeType, prefixes := range magicPrefixes {
		for _, prefix := range prefixes {
			if bytes.HasPrefix(data, prefix) {
				return mimeType, nil
			}
		}
	}
	return "", oops.Code(CodeUnsupportedType).
		Errorf("avatar must be a jpeg or png image")
}
