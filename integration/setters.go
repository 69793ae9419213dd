package integration

// SetName sets the integration's display name.
func SetName(name string) UpdateSetter {
	return func(i *Integration) error {
		if name == "" {
			return ErrInvalidName
		}
		i.Name = name
		return nil
	}
}

// SetIsActive toggles the integration on or off.
func SetIsActive(isActive bool) UpdateSetter {
	return func(i *Integration) error {
		i.IsActive = isActive
		return nil
	}
}

// SetEncryptedCredentials replaces the stored credential blob.
func SetEncryptedCredentials(creds []byte) UpdateSetter {
	return func(i *Integration) error {
		i.EncryptedCredentials = creds
		return nil
	}
}
