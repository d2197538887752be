package config

type SecurityConfig interface {
	GetBcryptCost() int
	GetEnableRateLimiting() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetBcryptCost() int {
	return 12
}

func (Security) GetEnableRateLimiting() bool {
	return false // Not yet implemented
}
