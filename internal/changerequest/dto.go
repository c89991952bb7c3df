package changerequest

type CreateRequest struct {
	Number        string              `json:"number" validate:"required,max=40"`
	ItemID        int64               `json:"item_id" validate:"gte=0"`
	ItemName      string              `json:"item_name" validate:"max=200"`
	Justification string              `json:"justification" validate:"required,max=2000"`
	Materials     []CreateMaterialReq `json:"materials_data" validate:"required,min=1,dive"`
}

type CreateMaterialReq struct {
	MasterMaterialID *int64  `json:"master_material_id,omitempty"`
	MaterialName     string  `json:"material_name" validate:"required,max=200"`
	Unit             string  `json:"unit" validate:"max=20"`
	Quantity         float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice        float64 `json:"unit_price" validate:"gte=0"`
	TotalPrice       float64 `json:"total_price" validate:"gte=0"`
}

type ChangeRequestResponse struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	BOQID         int64          `json:"boq_id"`
	ProjectID     int64          `json:"project_id"`
	ItemID        int64          `json:"item_id"`
	ItemName      string         `json:"item_name"`
	Justification string         `json:"justification"`
	Status        Status         `json:"status"`
	Materials     []MaterialData `json:"materials_data"`
	CreatedAt     string         `json:"created_at"`
}

type ListResponse struct {
	ChangeRequests []ChangeRequestResponse `json:"change_requests"`
	Page           int                     `json:"page"`
	PerPage        int                     `json:"per_page"`
	Total          int                     `json:"total"`
	TotalPages     int                     `json:"total_pages"`
}
