package styletransfer

import (
	"fmt"
	"strconv"
	"strings"

	"go_styletransfer/assets"
)

// NumStyles is the fixed number of model slots.
const NumStyles = 5

// Slot indices of the bundled styles.
const (
	StyleCandy = iota
	StyleMosaic
	StylePointilism
	StyleRainPrincess
	StyleUdnie
)

// StyleName returns the default name of slot i, or "" when out of range.
func StyleName(i int) string {
	if i < 0 || i >= NumStyles {
		return ""
	}
	return assets.DefaultStyles[i]
}

// ParseStyle accepts a slot index ("2") or a default style name
// ("pointilism", case-insensitive).
func ParseStyle(s string) (int, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		if i < 0 || i >= NumStyles {
			return 0, fmt.Errorf("%w: %d", ErrInvalidStyle, i)
		}
		return i, nil
	}
	for i, name := range assets.DefaultStyles {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStyle, s)
}
