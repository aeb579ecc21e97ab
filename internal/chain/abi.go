package chain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Interface names one of the static ABIs this service knows how to bind.
type Interface string

const (
	ShopFactoryInterface Interface = "ShopFactory"
	ShopInterface        Interface = "Shop"
	ERC20Interface       Interface = "ERC20"
	ERC721Interface      Interface = "ERC721"

	// Minimal per-category interfaces, enough to read the variant tag.
	RewardStrategyInterface   Interface = "RewardStrategy"
	DiscountStrategyInterface Interface = "DiscountStrategy"
	FeeShareStrategyInterface Interface = "FeeShareStrategy"

	FixedERC20RewardInterface              Interface = "FixedERC20Reward"
	LinearERC20RewardInterface             Interface = "LinearERC20Reward"
	BondingCurveERC20RewardInterface       Interface = "BondingCurveERC20Reward"
	AllowlistFixedERC20RewardInterface     Interface = "AllowlistFixedERC20Reward"
	PercentageDiscountInterface            Interface = "PercentageDiscount"
	AllowlistPercentageDiscountInterface   Interface = "AllowlistPercentageDiscount"
	TimeLimitedPercentageDiscountInterface Interface = "TimeLimitedPercentageDiscount"
	NFTHolderPercentageDiscountInterface   Interface = "NFTHolderPercentageDiscount"
	FixedFeeShareInterface                 Interface = "FixedFeeShare"
	AllowlistFeeShareInterface             Interface = "AllowlistFeeShare"
)

type abiArg struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

type abiEntry struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	Inputs          []abiArg `json:"inputs"`
	Outputs         []abiArg `json:"outputs,omitempty"`
	StateMutability string   `json:"stateMutability,omitempty"`
}

// args parses "uint256 id,address indexed buyer" into ABI arguments.
func args(list string) []abiArg {
	out := []abiArg{}
	if strings.TrimSpace(list) == "" {
		return out
	}
	for _, part := range strings.Split(list, ",") {
		fields := strings.Fields(part)
		arg := abiArg{Type: fields[0]}
		for _, f := range fields[1:] {
			if f == "indexed" {
				arg.Indexed = true
				continue
			}
			arg.Name = f
		}
		out = append(out, arg)
	}
	return out
}

func fn(name, mutability, in, out string) abiEntry {
	return abiEntry{Type: "function", Name: name, Inputs: args(in), Outputs: args(out), StateMutability: mutability}
}

func view(name, in, out string) abiEntry { return fn(name, "view", in, out) }
func send(name, in string) abiEntry      { return fn(name, "nonpayable", in, "") }

func event(name, in string) abiEntry {
	return abiEntry{Type: "event", Name: name, Inputs: args(in)}
}

var (
	getType = view("getType", "", "string")

	token           = view("token", "", "address")
	withdraw        = send("withdraw", "uint256 amount")
	rewardAmount    = view("rewardAmount", "", "uint256")
	setRewardAmount = send("setRewardAmount", "uint256 amount")

	allowlist = []abiEntry{
		view("getAllowlistLength", "", "uint256"),
		view("isAllowlisted", "address account", "bool"),
		send("addToAllowlist", "address account"),
		send("removeFromAllowlist", "address account"),
	}

	calculateDiscount = view("calculateDiscount", "uint256 amount,address buyer", "uint256")
	discountBps       = view("discountBps", "", "uint256")
	setDiscountBps    = send("setDiscountBps", "uint256 bps")

	feeShareBps    = view("feeShareBps", "", "uint256")
	setFeeShareBps = send("setFeeShareBps", "uint256 bps")
)

func join(groups ...[]abiEntry) []abiEntry {
	var out []abiEntry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var definitions = map[Interface][]abiEntry{
	ShopFactoryInterface: {
		fn("createShop", "nonpayable", "string metadataCid", "address"),
		view("getShops", "", "address[]"),
		view("getShopsByOwner", "address owner", "address[]"),
		event("ShopCreated", "address indexed shop,address indexed owner,string metadataCid"),
	},
	ShopInterface: {
		view("owner", "", "address"),
		view("metadataCid", "", "string"),
		view("getProductCount", "", "uint256"),
		view("getProduct", "uint256 id",
			"uint256 price,uint256 totalSold,uint256 supply,bool paused,string metadataCid,address discountStrategy,address feeShareStrategy,address rewardStrategy"),
		send("createProduct", "uint256 price,uint256 supply,string metadataCid"),
		send("updateProduct", "uint256 id,uint256 price,uint256 supply,string metadataCid"),
		send("pauseProduct", "uint256 id"),
		send("unpauseProduct", "uint256 id"),
		send("setDiscountStrategy", "uint256 productId,address strategy"),
		send("setFeeShareStrategy", "uint256 productId,address strategy"),
		send("setRewardStrategy", "uint256 productId,address strategy"),
		view("getRewardStrategies", "", "address[]"),
		view("getDiscountStrategies", "", "address[]"),
		view("getFeeShareStrategies", "", "address[]"),
		send("addRewardStrategy", "address strategy"),
		send("addDiscountStrategy", "address strategy"),
		send("addFeeShareStrategy", "address strategy"),
		fn("purchase", "payable", "uint256 productId,uint256 count,address referrer", ""),
		view("getOrderCount", "", "uint256"),
		view("getOrder", "uint256 id",
			"uint256 productId,address buyer,uint256 count,uint256 amountPaid,uint256 sellerAmount,uint256 purchaseTime,uint256 refundAmount,bool refunded,bool completed"),
		send("claimOrders", "uint256[] ids"),
		send("refundOrder", "uint256 id,uint256 amount"),
		send("completeOrder", "uint256 id"),
		event("ProductPurchased", "uint256 indexed productId,address indexed buyer,uint256 orderId,uint256 count,uint256 amountPaid"),
	},
	ERC20Interface: {
		view("name", "", "string"),
		view("symbol", "", "string"),
		view("decimals", "", "uint8"),
		view("balanceOf", "address account", "uint256"),
		fn("transfer", "nonpayable", "address to,uint256 amount", "bool"),
	},
	ERC721Interface: {
		view("name", "", "string"),
		view("symbol", "", "string"),
		view("balanceOf", "address owner", "uint256"),
	},

	RewardStrategyInterface:   {getType},
	DiscountStrategyInterface: {getType, calculateDiscount},
	FeeShareStrategyInterface: {getType},

	FixedERC20RewardInterface: {getType, token, withdraw, rewardAmount, setRewardAmount},
	LinearERC20RewardInterface: {getType, token, withdraw,
		view("rewardPerUnit", "", "uint256"),
		send("setRewardPerUnit", "uint256 amount"),
	},
	BondingCurveERC20RewardInterface: {getType, token, withdraw,
		view("initialReward", "", "uint256"),
		view("curveFactorBps", "", "uint256"),
		view("totalIssued", "", "uint256"),
		send("setCurveParams", "uint256 initialReward,uint256 curveFactorBps"),
	},
	AllowlistFixedERC20RewardInterface: join([]abiEntry{getType, token, withdraw, rewardAmount, setRewardAmount}, allowlist),

	PercentageDiscountInterface:          {getType, calculateDiscount, discountBps, setDiscountBps},
	AllowlistPercentageDiscountInterface: join([]abiEntry{getType, calculateDiscount, discountBps, setDiscountBps}, allowlist),
	TimeLimitedPercentageDiscountInterface: {getType, calculateDiscount, discountBps, setDiscountBps,
		view("startTime", "", "uint256"),
		view("endTime", "", "uint256"),
		send("setTimeWindow", "uint256 start,uint256 end"),
	},
	NFTHolderPercentageDiscountInterface: {getType, calculateDiscount, discountBps, setDiscountBps,
		view("collection", "", "address"),
		send("setCollection", "address collection"),
	},

	FixedFeeShareInterface:    {getType, feeShareBps, setFeeShareBps},
	AllowlistFeeShareInterface: join([]abiEntry{getType, feeShareBps, setFeeShareBps}, allowlist),
}

var (
	parseOnce sync.Once
	parsed    map[Interface]abi.ABI
	parseErr  error
)

func parseAll() {
	parsed = make(map[Interface]abi.ABI, len(definitions))
	for iface, entries := range definitions {
		raw, err := json.Marshal(entries)
		if err != nil {
			parseErr = fmt.Errorf("encode %s abi: %w", iface, err)
			return
		}
		a, err := abi.JSON(strings.NewReader(string(raw)))
		if err != nil {
			parseErr = fmt.Errorf("parse %s abi: %w", iface, err)
			return
		}
		parsed[iface] = a
	}
}

// ABI returns the parsed ABI for iface.
func ABI(iface Interface) (abi.ABI, error) {
	parseOnce.Do(parseAll)
	if parseErr != nil {
		return abi.ABI{}, parseErr
	}
	a, ok := parsed[iface]
	if !ok {
		return abi.ABI{}, fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
	}
	return a, nil
}

// HasMethod reports whether iface declares method.
func HasMethod(iface Interface, method string) bool {
	a, err := ABI(iface)
	if err != nil {
		return false
	}
	_, ok := a.Methods[method]
	return ok
}

// EventID returns topic0 of the named event.
func EventID(iface Interface, name string) (string, error) {
	a, err := ABI(iface)
	if err != nil {
		return "", err
	}
	ev, ok := a.Events[name]
	if !ok {
		return "", fmt.Errorf("%s has no event %s", iface, name)
	}
	return ev.ID.Hex(), nil
}
