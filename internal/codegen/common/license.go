package common

import (
	"fmt"
	"strings"
)

const copyrightHeader = `// Copyright 2015 The Chromium OS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// THIS CODE IS GENERATED - DO NOT MODIFY!
`

// FileHeader returns the banner placed at the top of every generated C
// file, followed by the stamp identifying the generator and its inputs.
func FileHeader(s Stamp) string {
	var b strings.Builder
	b.WriteString(copyrightHeader)
	fmt.Fprintf(&b, "\n%s\n", s.Lines())
	return b.String()
}
