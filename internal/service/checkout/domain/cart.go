// internal/service/checkout/domain/cart.go
package domain

import "time"

// CartItem 是购物车中的一条商品行。金额以最小货币单位的整数表示（IDR 无小数）。
type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Cart 是检测后端购物车的本地镜像。
// 商品由检测管线识别后经 cart_update 事件进入；本地编辑只发出命令，
// 状态同样等事件回来才变化，与 CommittedDeviceID 遵循同一条"绝不乐观更新"原则。
type Cart struct {
	Items     []CartItem
	UpdatedAt time.Time
}

func NewCart() *Cart {
	return &Cart{UpdatedAt: time.Now()}
}

// ReplaceAll 用 cart_update 事件的全量内容覆盖镜像。
func (c *Cart) ReplaceAll(items []CartItem) {
	c.Items = append([]CartItem(nil), items...)
	c.UpdatedAt = time.Now()
}

// Clear 清空镜像（本地终态效果，例如支付成功后的清车）。
func (c *Cart) Clear() {
	c.Items = nil
	c.UpdatedAt = time.Now()
}

// Empty 判断购物车是否为空。
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Total 计算合计金额。
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// Snapshot 返回商品行的独立副本，供结账时冻结。
func (c *Cart) Snapshot() []CartItem {
	return append([]CartItem(nil), c.Items...)
}
