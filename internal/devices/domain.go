package devices

// Device is one registered scale terminal.
type Device struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Kind    string `json:"kind"`
}

// Input carries the writable device fields.
type Input struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=200"`
	Kind    string `json:"kind" validate:"omitempty,max=50"`
}
