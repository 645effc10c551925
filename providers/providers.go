// Package providers registers every bundled provider with the default
// registry; import it for side effects.
package providers

import (
	_ "github.com/fetchtube/fetchtube/providers/youtube"
)
