package compute

import "github.com/san-kum/banksim/internal/dynamo"

type Serial struct{}

func NewSerial() *Serial {
	return &Serial{}
}

func (s *Serial) Name() string { return "serial" }

func (s *Serial) Evaluate(drift, diffusion dynamo.Field, x dynamo.State) (dynamo.State, dynamo.State, error) {
	b, err := evalField("drift", drift, x)
	if err != nil {
		return nil, nil, err
	}
	sig, err := evalField("diffusion", diffusion, x)
	if err != nil {
		return nil, nil, err
	}
	return b, sig, nil
}
