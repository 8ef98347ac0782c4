package schemas

import (
	"fmt"
	"strings"
)

// FetchMode tells a preloader when to resolve the row a foreign key points to.
type FetchMode int

const (
	// FetchModeLazy resolves the referenced row only on demand.
	FetchModeLazy FetchMode = iota
	// FetchModeEager resolves the referenced row when the owning row is loaded.
	FetchModeEager
)

func (m FetchMode) Valid() bool {
	return m == FetchModeLazy || m == FetchModeEager
}

func (m FetchMode) String() string {
	switch m {
	case FetchModeLazy:
		return "lazy"
	case FetchModeEager:
		return "eager"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

func (m FetchMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFetchMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *FetchMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFetchMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseFetchMode accepts "lazy" or "eager", case-insensitively.
func ParseFetchMode(s string) (FetchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lazy":
		return FetchModeLazy, nil
	case "eager":
		return FetchModeEager, nil
	default:
		return FetchModeLazy, fmt.Errorf("%w: %q", ErrInvalidFetchMode, s)
	}
}

// FetchModeFromCode converts an integer code reported by a driver.
func FetchModeFromCode(code int) (FetchMode, error) {
	m := FetchMode(code)
	if !m.Valid() {
		return FetchModeLazy, fmt.Errorf("%w: %d", ErrInvalidFetchMode, code)
	}
	return m, nil
}
