package types

// WindowInput selects the rolling window of RollingAverageWorkflow: m|minute, h|hour or d|day.
type WindowInput struct {
	Window string `json:"window"`
}
