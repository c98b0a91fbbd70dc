package model

// Company is the registered company record the intel pipeline fills in.
type Company struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Website    string `json:"website"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Address    string `json:"address"`
	Industry   string `json:"industry"`
}
