package endpoints

import (
	val "github.com/go-ozzo/ozzo-validation"
)

type BankDto struct {
	Bank string
}

func (dto BankDto) Validate() error {
	return val.ValidateStruct(&dto,
		val.Field(&dto.Bank, val.Required, val.Length(2, 32)),
	)
}

type ConsentDto struct {
	Bank      string
	ConsentId string
}

func (dto ConsentDto) Validate() error {
	return val.ValidateStruct(&dto,
		val.Field(&dto.Bank, val.Required, val.Length(2, 32)),
		val.Field(&dto.ConsentId, val.Required),
	)
}
