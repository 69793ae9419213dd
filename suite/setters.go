package suite

// SetName sets the suite name.
func SetName(name string) UpdateSetter {
	return func(s *Suite) error {
		if name == "" {
			return ErrInvalidSuiteName
		}
		s.Name = name
		return nil
	}
}

// SetDescription sets the suite description.
func SetDescription(description string) UpdateSetter {
	return func(s *Suite) error {
		s.Description = description
		return nil
	}
}
