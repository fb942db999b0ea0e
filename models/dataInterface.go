package models

type Identifier interface {
	GetId() int
}

// key
func (t FiscalTransaction) GetId() int {
	return t.ID
}

func (r Report) GetId() int {
	return r.ID
}
