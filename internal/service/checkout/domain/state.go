// internal/service/checkout/domain/state.go
package domain

// CameraOwner 标识当前持有摄像头设备的上下文
type CameraOwner string

const (
	OwnerNone          CameraOwner = "NONE"          // 无人持有（启动初期或硬件错误后）
	OwnerScanning      CameraOwner = "SCANNING"      // 扫描画面持有，正常收银状态
	OwnerConfiguration CameraOwner = "CONFIGURATION" // 配置界面持有，设备选择期间
)

// CameraPhase 定义了摄像头资源的生命周期阶段
type CameraPhase string

const (
	PhaseIdle      CameraPhase = "IDLE"      // 已释放，等待下一次占用
	PhaseAcquiring CameraPhase = "ACQUIRING" // 初始化/恢复命令已发出，等待确认
	PhaseActive    CameraPhase = "ACTIVE"    // 硬件已就绪，画面可用
	PhaseReleasing CameraPhase = "RELEASING" // 释放命令已发出，等待确认
	PhaseError     CameraPhase = "ERROR"     // 瞬态错误，随后回落到 IDLE
)

// ModelStatus 定义了检测模型的就绪状态
type ModelStatus string

const (
	ModelUninitialized ModelStatus = "UNINITIALIZED" // 尚未加载过任何模型
	ModelInitializing  ModelStatus = "INITIALIZING"  // 切换/加载命令已发出
	ModelReady         ModelStatus = "READY"         // 模型与标签可用
	ModelError         ModelStatus = "ERROR"         // 加载失败
)

// PaymentStatus 定义了一次结账会话的生命周期状态
type PaymentStatus string

const (
	PaymentIdle     PaymentStatus = "IDLE"     // 无进行中的结账
	PaymentCreating PaymentStatus = "CREATING" // 交易创建命令已发出
	PaymentPending  PaymentStatus = "PENDING"  // 网关已确认交易，等待用户支付
	PaymentSuccess  PaymentStatus = "SUCCESS"  // 支付成功
	PaymentFailed   PaymentStatus = "FAILED"   // 支付失败，可重试
	PaymentExpired  PaymentStatus = "EXPIRED"  // 本地倒计时到期，可重试
)
