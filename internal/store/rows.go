package store

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// customerSelect lists the customers columns in model.CustomerColumns order.
var customerSelect = strings.Join(model.CustomerColumns, ", ")

type scannable interface {
	Scan(dest ...any) error
}

func scanCustomer(row scannable) (*model.Customer, error) {
	var (
		c               model.Customer
		id              int64
		hasCard, active int
	)
	err := row.Scan(&id, &c.Surname, &c.CreditScore, &c.Geography, &c.Gender,
		&c.Age, &c.Tenure, &c.Balance, &c.NumOfProducts, &hasCard, &active,
		&c.EstimatedSalary, &c.Exited)
	if err != nil {
		return nil, err
	}
	c.CustomerID = strconv.FormatInt(id, 10)
	c.HasCrCard = hasCard != 0
	c.IsActiveMember = active != 0
	return &c, nil
}

// customerRow flattens a customer into model.CustomerColumns order.
func customerRow(c model.Customer) ([]any, error) {
	id, err := parseCustomerID(c.CustomerID)
	if err != nil {
		return nil, err
	}
	return []any{
		id, c.Surname, c.CreditScore, c.Geography, c.Gender,
		c.Age, c.Tenure, c.Balance, c.NumOfProducts,
		boolInt(c.HasCrCard), boolInt(c.IsActiveMember),
		c.EstimatedSalary, c.Exited,
	}, nil
}

func parseCustomerID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "store: customer id %q", s)
	}
	return id, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
