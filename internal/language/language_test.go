package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	err := ValidateQuery(`query Q($id_0:ID!){node(id:$id_0){...F0}} fragment F0 on Ship{name}`)
	require.NoError(t, err)
}

func TestValidateQuery_UndefinedFragment(t *testing.T) {
	err := ValidateQuery(`query Q{viewer{...F1}}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "F1")
}

func TestValidateQuery_SyntaxError(t *testing.T) {
	require.Error(t, ValidateQuery(`query Q{viewer{`))
}

func TestValidateQuery_MultipleOperations(t *testing.T) {
	require.Error(t, ValidateQuery(`query A{a} query B{b}`))
}
