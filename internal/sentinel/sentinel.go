package sentinel

var _ error = Error("")

// Error is a string-backed error usable in const declarations.
//
// Being a comparable type, == is what errors.Is falls back to, so wrapped
// chains built with fmt.Errorf("...: %w", err) match as expected. Two Error
// values with the same text compare equal; give every sentinel a distinct
// message.
type Error string

func (e Error) Error() string {
	return string(e)
}
