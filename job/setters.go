package job

// SetPriority sets the job priority. Higher values are claimed first.
func SetPriority(priority int) UpdateSetter {
	return func(j *Job) error {
		j.Priority = priority
		return nil
	}
}

// SetConfig replaces the execution config snapshot.
func SetConfig(config JSONMap) UpdateSetter {
	return func(j *Job) error {
		j.Config = config
		return nil
	}
}

// SetMaxRetries sets the display-only retry budget.
func SetMaxRetries(maxRetries int) UpdateSetter {
	return func(j *Job) error {
		j.MaxRetries = maxRetries
		return nil
	}
}
