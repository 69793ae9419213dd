package agent

// SetName sets the display name.
func SetName(name string) UpdateSetter {
	return func(a *Agent) error {
		if name == "" {
			return ErrInvalidAgentName
		}
		a.Name = name
		return nil
	}
}

// SetStatus sets the self-reported status.
func SetStatus(status Status) UpdateSetter {
	return func(a *Agent) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		a.Status = &status
		return nil
	}
}

// SetCapacity sets the maximum number of concurrent jobs.
func SetCapacity(capacity int) UpdateSetter {
	return func(a *Agent) error {
		if capacity < 1 {
			return ErrInvalidCapacity
		}
		a.Capacity = capacity
		return nil
	}
}

// SetBrowsers replaces the capability tags.
func SetBrowsers(browsers Tags) UpdateSetter {
	return func(a *Agent) error {
		a.Browsers = browsers
		return nil
	}
}

// SetConfig replaces the opaque configuration map.
func SetConfig(config ConfigMap) UpdateSetter {
	return func(a *Agent) error {
		a.Config = config
		return nil
	}
}
