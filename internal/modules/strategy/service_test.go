package strategy

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/chain/chaintest"
	"github.com/georgemunganga/onchain-storefront/internal/platform/events"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(b *chaintest.Binder) (Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewService(b, newResolver(b), pub, zap.NewNop(), nil), pub
}

func TestExecuteUpdatesAndRefreshes(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryDiscount, addr)
	stubPercentageDiscount(b, addr, 1000)
	b.OnSend(addr, "setDiscountBps", func(_ *big.Int, args ...interface{}) error {
		b.Returns(addr, "discountBps", args[0].(*big.Int))
		return nil
	})
	svc, pub := newTestService(b)

	res, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop:     shopAddr,
		Category: CategoryDiscount,
		Strategy: addr,
		Action:   "update-percentage",
		Form:     map[string]string{"percentage": "12.5"},
	})
	require.NoError(t, err)

	require.Len(t, b.Sent, 1)
	assert.Equal(t, "setDiscountBps", b.Sent[0].Method)
	assert.Equal(t, chain.PercentageDiscountInterface, b.Sent[0].Interface)
	assert.Equal(t, int64(1250), b.Sent[0].Args[0].(*big.Int).Int64())

	require.Len(t, res.TxHashes, 1)
	require.Len(t, res.Strategies, 1)
	assert.Equal(t, "12.5%", res.Strategies[0].Variables[0].Value)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeStrategyAction, pub.events[0].Type)
}

func TestExecuteValidationFailsPerField(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryDiscount, addr)
	b.Returns(addr, "getType", "TimeLimitedPercentageDiscount")
	b.Returns(addr, "discountBps", big.NewInt(100))
	b.Returns(addr, "startTime", big.NewInt(0))
	b.Returns(addr, "endTime", big.NewInt(0))
	svc, _ := newTestService(b)

	_, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop:     shopAddr,
		Category: CategoryDiscount,
		Strategy: addr,
		Action:   "update-window",
		Form:     map[string]string{"start": "tomorrow"},
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "start")
	assert.Contains(t, appErr.Fields, "end")
	assert.Empty(t, b.Sent)

	_, err = svc.Execute(context.Background(), ExecuteRequest{
		Shop:     shopAddr,
		Category: CategoryDiscount,
		Strategy: addr,
		Action:   "update-window",
		Form:     map[string]string{"start": "2026-02-01T00:00:00Z", "end": "1767225600"},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "end")
	assert.Empty(t, b.Sent)
}

func TestExecutePercentageOutOfRange(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryDiscount, addr)
	stubPercentageDiscount(b, addr, 1000)
	svc, _ := newTestService(b)

	_, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryDiscount, Strategy: addr,
		Action: "update-percentage",
		Form:   map[string]string{"percentage": "150"},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, b.Sent)
}

func TestExecuteAllowlistPrecondition(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	member := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stubList(b, CategoryFeeShare, addr)
	b.Returns(addr, "getType", "AllowlistFeeShare")
	b.Returns(addr, "feeShareBps", big.NewInt(250))
	b.Returns(addr, "getAllowlistLength", big.NewInt(1))
	b.Returns(addr, "isAllowlisted", true)
	svc, _ := newTestService(b)

	_, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryFeeShare, Strategy: addr,
		Action: "add-allowlist",
		Form:   map[string]string{"account": member.Hex()},
	})
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.ErrorContains(t, err, "already allowlisted")
	assert.Empty(t, b.Sent)
}

func TestExecuteFundChecksWalletBalance(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryReward, addr)
	stubFixedReward(b, addr, big.NewInt(1e18), big.NewInt(0))
	svc, _ := newTestService(b)

	req := ExecuteRequest{
		Shop: shopAddr, Category: CategoryReward, Strategy: addr,
		Action: "fund",
		Form:   map[string]string{"amount": "2.5"},
	}
	_, err := svc.Execute(context.Background(), req)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.Empty(t, b.Sent)

	b.On(tokenAddr, "balanceOf", func(...interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(3e18)}, nil
	})
	_, err = svc.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, b.Sent, 1)
	assert.Equal(t, tokenAddr, b.Sent[0].Address)
	assert.Equal(t, chain.ERC20Interface, b.Sent[0].Interface)
	assert.Equal(t, "transfer", b.Sent[0].Method)
	assert.Equal(t, addr, b.Sent[0].Args[0])
	assert.Equal(t, "2500000000000000000", b.Sent[0].Args[1].(*big.Int).String())
}

func TestExecuteTransactionFailed(t *testing.T) {
	b := chaintest.NewBinder(operator)
	b.FailReceipts = true
	addr := strategyAddr(1)
	stubList(b, CategoryFeeShare, addr)
	b.Returns(addr, "getType", "FixedFeeShare")
	b.Returns(addr, "feeShareBps", big.NewInt(250))
	svc, pub := newTestService(b)

	_, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryFeeShare, Strategy: addr,
		Action: "update-percentage",
		Form:   map[string]string{"percentage": "3"},
	})
	assert.ErrorIs(t, err, chain.ErrTransactionFailed)
	assert.Equal(t, apperr.KindTransactionFailed, apperr.KindOf(err))
	assert.NotEmpty(t, apperr.BodyOf(err).TxHash)
	assert.Empty(t, pub.events)
}

func TestExecuteRejectsUnknownTargets(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryDiscount, addr)
	stubPercentageDiscount(b, addr, 100)
	b.Returns(strategyAddr(9), "getType", "QuadraticDiscount")
	svc, _ := newTestService(b)

	_, err := svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryDiscount, Strategy: strategyAddr(2), Action: "update-percentage",
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryDiscount, Strategy: addr, Action: "fund",
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	stubList(b, CategoryDiscount, addr, strategyAddr(9))
	_, err = svc.Execute(context.Background(), ExecuteRequest{
		Shop: shopAddr, Category: CategoryDiscount, Strategy: strategyAddr(9), Action: "update-percentage",
	})
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.Empty(t, b.Sent)
}

func TestParseForm(t *testing.T) {
	fields := []Field{
		{Name: "amount", Label: "Amount", Type: FieldAmount, Required: true, Decimals: 6},
		{Name: "account", Label: "Account", Type: FieldAddress, Required: true},
		{Name: "at", Label: "At", Type: FieldTimestamp},
	}

	in, err := parseForm(fields, map[string]string{
		"amount":  "1.25",
		"account": "0x00000000000000000000000000000000000000bb",
		"at":      "1970-01-01T00:01:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "1250000", in.Int("amount").String())
	assert.Equal(t, common.HexToAddress("0xbb"), in.Address("account"))
	assert.Equal(t, int64(60), in.Int("at").Int64())

	_, err = parseForm(fields, map[string]string{"amount": "1.0000001", "account": "0x12"})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Fields, 2)
}

func TestHandlerListAndExecute(t *testing.T) {
	b := chaintest.NewBinder(operator)
	addr := strategyAddr(1)
	stubList(b, CategoryDiscount, addr)
	stubPercentageDiscount(b, addr, 1000)
	svc, _ := newTestService(b)

	r := chi.NewRouter()
	pass := func(next http.Handler) http.Handler { return next }
	NewHandler(svc).RegisterRoutes(r, pass)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops/"+shopAddr.Hex()+"/strategies/discount", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"resolved"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops/"+shopAddr.Hex()+"/strategies/loyalty", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"percentage": 20}`)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/shops/"+shopAddr.Hex()+"/strategies/discount/"+addr.Hex()+"/actions/update-percentage", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, b.Sent, 1)
	assert.Equal(t, int64(2000), b.Sent[0].Args[0].(*big.Int).Int64())
}
