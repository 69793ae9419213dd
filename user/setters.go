package user

// SetEmail replaces the login email.
func SetEmail(email string) UpdateSetter {
	return func(u *User) error {
		if email == "" {
			return ErrInvalidEmail
		}
		u.Email = email
		return nil
	}
}

// SetUsername replaces the display name.
func SetUsername(username string) UpdateSetter {
	return func(u *User) error {
		if username == "" {
			return ErrInvalidUsername
		}
		u.Username = username
		return nil
	}
}

// SetPassword hashes and stores a new password.
func SetPassword(password string) UpdateSetter {
	return func(u *User) error {
		return u.SetPassword(password)
	}
}
