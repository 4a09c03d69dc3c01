package domain

// Column names of the stock movement sheet
const (
	MovementDate          = "Data"
	MovementProductID     = "ID do Prod"
	MovementProduct       = "Produto"
	MovementClient        = "Cliente"
	MovementType          = "Tipo de Movimento"
	MovementQuantity      = "Quantidade"
	MovementCostTotal     = "Preço Custo Total"
	MovementSaleTotal     = "Preço Venda Total"
	MovementNotes         = "Observações"
	MovementStatus        = "Status"
	MovementDueDate       = "Data Previsão"
	MovementPaymentMethod = "Forma de Pagamento"
	MovementSaleID        = "ID_Venda"
)

// MovementColumns is the column order of a freshly created movement sheet
var MovementColumns = []string{
	MovementDate, MovementProductID, MovementProduct, MovementClient, MovementType,
	MovementQuantity, MovementCostTotal, MovementSaleTotal, MovementNotes,
	MovementStatus, MovementDueDate, MovementPaymentMethod, MovementSaleID,
}

// Movement is one stock or sales transaction
type Movement struct {
	Date          string
	ProductID     string
	Product       string
	Client        string
	Type          string
	Quantity      string
	CostTotal     string
	SaleTotal     string
	Notes         string
	Status        string
	DueDate       string
	PaymentMethod string
	SaleID        string
}

// Values returns the movement keyed by sheet column name
func (m Movement) Values() map[string]string {
	return map[string]string{
		MovementDate:          m.Date,
		MovementProductID:     m.ProductID,
		MovementProduct:       m.Product,
		MovementClient:        m.Client,
		MovementType:          m.Type,
		MovementQuantity:      m.Quantity,
		MovementCostTotal:     m.CostTotal,
		MovementSaleTotal:     m.SaleTotal,
		MovementNotes:         m.Notes,
		MovementStatus:        m.Status,
		MovementDueDate:       m.DueDate,
		MovementPaymentMethod: m.PaymentMethod,
		MovementSaleID:        m.SaleID,
	}
}
