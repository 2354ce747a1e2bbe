package customers

type CreateCustomerRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address" validate:"omitempty,max=500"`
	GSTNumber string `json:"gst_number" validate:"omitempty,len=15,alphanum"`
}

type UpdateCustomerRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Address   *string `json:"address,omitempty" validate:"omitempty,max=500"`
	GSTNumber *string `json:"gst_number,omitempty" validate:"omitempty,len=15,alphanum"`
}

type ListCustomersRequest struct {
	Search string
	Page   int
	Limit  int
}

func (r ListCustomersRequest) offset() int {
	return (r.Page - 1) * r.Limit
}
