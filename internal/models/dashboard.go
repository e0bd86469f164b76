package models

// Dashboard represents the landing page data of a logged in user
type Dashboard struct {
	Username     string   `json:"username"`
	Debtors      []Client `json:"clientes_con_deuda"`
	TotalClients int      `json:"total_clientes"`
}

// Reminder groups the clients of one user whose payment is due on a day
type Reminder struct {
	UserID  string   `json:"user_id"`
	Email   string   `json:"email"`
	DueDay  int      `json:"due_day"`
	Clients []Client `json:"clients"`
}
