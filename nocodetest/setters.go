package nocodetest

// SetName sets the test name.
func SetName(name string) UpdateSetter {
	return func(t *Test) error {
		if name == "" {
			return ErrInvalidTestName
		}
		t.Name = name
		return nil
	}
}

// SetDescription sets the test description.
func SetDescription(description string) UpdateSetter {
	return func(t *Test) error {
		t.Description = description
		return nil
	}
}

// SetBaseURL sets the base URL the test runs against.
func SetBaseURL(baseURL string) UpdateSetter {
	return func(t *Test) error {
		if baseURL == "" {
			return ErrInvalidBaseURL
		}
		t.BaseURL = baseURL
		return nil
	}
}

// SetSteps replaces the step list.
func SetSteps(steps Steps) UpdateSetter {
	return func(t *Test) error {
		if err := ValidateSteps(steps, DefaultValidationLimits()); err != nil {
			return err
		}
		t.Steps = steps
		return nil
	}
}

// SetStatus sets the last known outcome of the test.
func SetStatus(status Status) UpdateSetter {
	return func(t *Test) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		t.Status = status
		return nil
	}
}
