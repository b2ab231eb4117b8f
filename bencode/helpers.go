package bencode

// Str is a convenience constructor for String from a Go string, used
// throughout proto/ where tags and human messages are ordinary text.
func Str(s string) String {
	return String(s)
}

// AsString type-asserts v as a byte string, returning ok=false for any
// other kind (or a nil v). Dispatcher argument validation leans on this
// rather than repeating the switch everywhere.
func AsString(v Value) (String, bool) {
	s, ok := v.(String)
	return s, ok
}

// AsInt type-asserts v as an integer.
func AsInt(v Value) (Int, bool) {
	i, ok := v.(Int)
	return i, ok
}

// AsList type-asserts v as a list.
func AsList(v Value) (List, bool) {
	l, ok := v.(List)
	return l, ok
}

// AsBool interprets v as the {0,1}-constrained integer the protocol calls
// "b". Any other integer value is rejected.
func AsBool(v Value) (bool, bool) {
	i, ok := v.(Int)
	if !ok {
		return false, false
	}
	switch i {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}
