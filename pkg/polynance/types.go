package polynance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoPendingPrice 没有可验证的价格数据
var ErrNoPendingPrice = errors.New("polynance: no verifiable pending price")

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 解析方向（大小写不敏感）
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side %q (want BUY or SELL)", s)
	}
}

// ExecuteOrderParams 一笔下单意图
type ExecuteOrderParams struct {
	Provider         string  `json:"provider" yaml:"provider"`
	MarketIDOrSlug   string  `json:"marketIdOrSlug" yaml:"marketIdOrSlug"`
	PositionIDOrName string  `json:"positionIdOrName" yaml:"positionIdOrName"`
	BuyOrSell        Side    `json:"buyOrSell" yaml:"buyOrSell"`
	USDCFlowAbs      float64 `json:"usdcFlowAbs" yaml:"usdcFlowAbs"`
}

// Validate 校验字段完整性并规范化方向
func (p *ExecuteOrderParams) Validate() error {
	if strings.TrimSpace(p.Provider) == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(p.MarketIDOrSlug) == "" {
		return errors.New("marketIdOrSlug is required")
	}
	if strings.TrimSpace(p.PositionIDOrName) == "" {
		return errors.New("positionIdOrName is required")
	}
	side, err := ParseSide(string(p.BuyOrSell))
	if err != nil {
		return err
	}
	p.BuyOrSell = side
	if p.USDCFlowAbs <= 0 {
		return fmt.Errorf("usdcFlowAbs must be > 0, got %v", p.USDCFlowAbs)
	}
	return nil
}

func (p ExecuteOrderParams) String() string {
	return fmt.Sprintf("%s:%s/%s %s %gUSDC", p.Provider, p.MarketIDOrSlug, p.PositionIDOrName, p.BuyOrSell, p.USDCFlowAbs)
}

// OrderDraft 服务端解析市场后返回的未签名订单
type OrderDraft struct {
	MarketID    string `json:"marketId"`
	ConditionID string `json:"conditionId"`
	TokenID     string `json:"tokenId"`
	Outcome     string `json:"outcome"`
	Side        Side   `json:"side"`
	Price       string `json:"price"`
	MakerAmount string `json:"makerAmount"`
	TakerAmount string `json:"takerAmount"`
	FeeRateBps  string `json:"feeRateBps"`
	Nonce       string `json:"nonce"`
	Expiration  string `json:"expiration"`
	NegRisk     bool   `json:"negRisk"`
}

// OrderPayload 已签名订单的链下表示（CTF Exchange 订单结构）
type OrderPayload struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// SignedOrder BuildOrder 的结果
type SignedOrder struct {
	Request     ExecuteOrderParams `json:"request"`
	MarketID    string             `json:"marketId"`
	ConditionID string             `json:"conditionId"`
	Outcome     string             `json:"outcome"`
	Price       string             `json:"price"`
	NegRisk     bool               `json:"negRisk"`
	Order       OrderPayload       `json:"order"`
}

func (s *SignedOrder) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("SignedOrder{market=%s outcome=%s side=%s token=%s maker=%s taker=%s price=%s negRisk=%v signer=%s}",
		s.MarketID, s.Outcome, s.Order.Side, s.Order.TokenID, s.Order.MakerAmount, s.Order.TakerAmount,
		s.Price, s.NegRisk, s.Order.Signer)
}

// ExecutionResult ExecuteOrder 的结果
type ExecutionResult struct {
	Success         bool      `json:"success"`
	ErrorMsg        string    `json:"errorMsg"`
	OrderID         string    `json:"orderId"`
	Status          string    `json:"status"`
	MarketID        string    `json:"marketId"`
	Outcome         string    `json:"outcome"`
	Side            Side      `json:"side"`
	MakingAmount    string    `json:"makingAmount"`
	TakingAmount    string    `json:"takingAmount"`
	ProposedPrice   string    `json:"proposedPrice"`
	TransactionHash string    `json:"transactionHash"`
	ExecutedAt      time.Time `json:"executedAt"`
}

// OrderContext 执行结果的可读投影
type OrderContext struct {
	OrderID  string `json:"orderId"`
	Provider string `json:"provider"`
	Market   string `json:"market"`
	Position string `json:"position"`
	Side     Side   `json:"side"`
	USDCFlow string `json:"usdcFlow"`
	Shares   string `json:"shares"`
	Price    string `json:"price"`
	Status   string `json:"status"`
	TxHash   string `json:"txHash,omitempty"`
}

func (c OrderContext) String() string {
	s := fmt.Sprintf("order %s [%s] %s %s/%s usdc=%s shares=%s price=%s",
		c.OrderID, c.Status, c.Side, c.Market, c.Position, c.USDCFlow, c.Shares, c.Price)
	if c.TxHash != "" {
		s += " tx=" + c.TxHash
	}
	return s
}

// PendingPrice 等待预言机验证的价格数据
type PendingPrice struct {
	OrderID    string    `json:"orderId"`
	MarketID   string    `json:"marketId"`
	Price      string    `json:"price"`
	ProposedAt time.Time `json:"proposedAt"`
	Verifiable bool      `json:"verifiable"`
	Settled    bool      `json:"settled"`
}

type prepareOrderResponse struct {
	Draft OrderDraft `json:"draft"`
}

type executeOrderRequest struct {
	Order *SignedOrder `json:"order"`
	Owner string       `json:"owner"`
}

type pendingPricesResponse struct {
	Prices []PendingPrice `json:"prices"`
}

type verifyPriceRequest struct {
	OrderIDs []string       `json:"orderIds"`
	Prices   []PendingPrice `json:"prices"`
}

// VerifyResult 单笔订单的验证结果
type VerifyResult struct {
	OrderID  string `json:"orderId"`
	TxHash   string `json:"txHash"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

type verifyPriceResponse struct {
	Results []VerifyResult `json:"results"`
}
