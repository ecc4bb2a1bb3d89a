package models

import "errors"

var (
	// ErrNotFound the requested record does not exist for the caller.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrUnknownReference a member, bank, category or transaction id does not resolve.
	ErrUnknownReference = errors.New("referência desconhecida")
	// ErrIncompatibleCategory the category type does not accept the transaction type.
	ErrIncompatibleCategory = errors.New("categoria incompatível com o tipo da transação")
	// ErrValidation a field value is not acceptable.
	ErrValidation = errors.New("dados inválidos")
)
