package polynance

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
)

// 抵押品（USDC）精度
const collateralDecimals = 6

const zeroAddress = "0x0000000000000000000000000000000000000000"

// OrderBuilder 在本地用钱包私钥对服务端草稿做 EIP-712 签名
type OrderBuilder struct {
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
	builder    *builder.ExchangeOrderBuilderImpl
}

// NewOrderBuilder saltGen 为 nil 时使用库默认的随机 salt
func NewOrderBuilder(pk *ecdsa.PrivateKey, addr common.Address, chainID *big.Int, saltGen func() int64) *OrderBuilder {
	return &OrderBuilder{
		signer:     pk,
		signerAddr: addr,
		builder:    builder.NewExchangeOrderBuilderImpl(chainID, saltGen),
	}
}

// Sign 校验草稿并签名
func (b *OrderBuilder) Sign(req ExecuteOrderParams, draft OrderDraft) (*SignedOrder, error) {
	if err := validateDraft(req, draft); err != nil {
		return nil, err
	}

	side := model.SELL
	if req.BuyOrSell == SideBuy {
		side = model.BUY
	}

	data := &model.OrderData{
		Maker:         b.signerAddr.Hex(),
		Signer:        b.signerAddr.Hex(),
		Taker:         zeroAddress,
		TokenId:       draft.TokenID,
		MakerAmount:   draft.MakerAmount,
		TakerAmount:   draft.TakerAmount,
		Side:          side,
		FeeRateBps:    orDefault(draft.FeeRateBps, "0"),
		Nonce:         orDefault(draft.Nonce, "0"),
		Expiration:    orDefault(draft.Expiration, "0"),
		SignatureType: model.EOA,
	}

	contract := model.CTFExchange
	if draft.NegRisk {
		contract = model.NegRiskCTFExchange
	}

	signed, err := b.builder.BuildSignedOrder(b.signer, data, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to build signed order: %w", err)
	}

	sideStr := SideBuy
	if signed.Order.Side.Int64() == 1 {
		sideStr = SideSell
	}

	return &SignedOrder{
		Request:     req,
		MarketID:    draft.MarketID,
		ConditionID: draft.ConditionID,
		Outcome:     draft.Outcome,
		Price:       draft.Price,
		NegRisk:     draft.NegRisk,
		Order: OrderPayload{
			Salt:          signed.Order.Salt.Int64(),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       signed.Order.TokenId.String(),
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          sideStr,
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     hexutil.Encode(signed.Signature),
		},
	}, nil
}

// validateDraft 草稿方向需与请求一致，抵押品一侧（BUY=maker, SELL=taker）
// 必须为正且不超过 usdcFlowAbs
func validateDraft(req ExecuteOrderParams, draft OrderDraft) error {
	if strings.TrimSpace(draft.TokenID) == "" {
		return fmt.Errorf("draft for %s has no tokenId", req.MarketIDOrSlug)
	}
	if draft.Side != "" && draft.Side != req.BuyOrSell {
		return fmt.Errorf("draft side %s does not match request side %s", draft.Side, req.BuyOrSell)
	}

	maker, err := parseAmount("makerAmount", draft.MakerAmount)
	if err != nil {
		return err
	}
	taker, err := parseAmount("takerAmount", draft.TakerAmount)
	if err != nil {
		return err
	}

	collateral := taker
	if req.BuyOrSell == SideBuy {
		collateral = maker
	}
	limit := decimal.NewFromFloat(req.USDCFlowAbs).Shift(collateralDecimals)
	if collateral.GreaterThan(limit) {
		return fmt.Errorf("collateral amount %s exceeds usdcFlowAbs %v (%s units)", collateral, req.USDCFlowAbs, limit)
	}
	return nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if !d.IsPositive() || !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("%s must be a positive integer, got %s", name, raw)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
