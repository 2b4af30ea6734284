package banks

// Registry maps a bank identifier to its base API endpoint. It is built
// once at startup and never mutated afterwards.
type Registry map[string]string

func (r Registry) URL(bank string) (string, error) {
	base, ok := r[bank]
	if !ok {
		return "", &InvalidBankError{Bank: bank}
	}
	return base, nil
}
