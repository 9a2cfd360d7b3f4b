package models

// Provider is a service provider that can pitch for a classified request.
type Provider struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Category    string  `json:"category" yaml:"category"`
	Rating      float64 `json:"rating" yaml:"rating"`
	Description string  `json:"description,omitempty" yaml:"description"`
	Location    string  `json:"location,omitempty" yaml:"location"`
	Image       string  `json:"image,omitempty" yaml:"image"`
	Active      bool    `json:"active" yaml:"active"`
}
