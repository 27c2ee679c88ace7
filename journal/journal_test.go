package journal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"riskpool/core/types"
	"riskpool/native/etoken"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("file::memory:")
	require.NoError(t, err)
	return j
}

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestEmitPersistsEvents(t *testing.T) {
	j := openTestJournal(t)

	j.Emit(&etoken.Deposit{EToken: testAddr(1), Provider: testAddr(2), Amount: big.NewInt(1_000_000)})
	j.Emit(&etoken.Withdrawal{EToken: testAddr(1), Provider: testAddr(2), Receiver: testAddr(3), Amount: big.NewInt(250_000)})
	j.Emit(&etoken.Deposit{EToken: testAddr(1), Provider: testAddr(4), Amount: big.NewInt(500)})

	count, err := j.Count()
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	deposits, err := j.EventsByType(etoken.EventTypeDeposit, 0)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	for _, record := range deposits {
		require.Equal(t, etoken.EventTypeDeposit, record.Type)
		require.NotEqual(t, record.ID.String(), "00000000-0000-0000-0000-000000000000")
	}

	attrs, err := deposits[0].AttributeMap()
	require.NoError(t, err)
	require.Equal(t, testAddr(1).Hex(), attrs["etoken"])
	require.Contains(t, []string{"1000000", "500"}, attrs["amount"])
}

func TestEventsByTypeLimit(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 5; i++ {
		j.Emit(&etoken.Deposit{EToken: testAddr(1), Provider: testAddr(2), Amount: big.NewInt(int64(i))})
	}

	records, err := j.EventsByType(etoken.EventTypeDeposit, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	none, err := j.EventsByType("etoken.unheard_of", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestNilSafety(t *testing.T) {
	var j *Journal
	j.Emit(&etoken.Deposit{Amount: big.NewInt(1)})
	_, err := j.Count()
	require.Error(t, err)
	_, err = j.EventsByType(etoken.EventTypeDeposit, 0)
	require.Error(t, err)

	open := openTestJournal(t)
	open.Emit(nil)
	count, err := open.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}
