package layout

import (
	"time"

	"github.com/ByLCY/vellum/formula"
)

// Options 配置分页与合成所需的依赖。
type Options struct {
	// Engine 是公式求值引擎；为空时 NewPlanner 构造带内建函数的默认引擎。
	Engine *formula.Engine
	// Now 注入 {currentDate}/{currentTime} 使用的时钟，保证同一输入的
	// 重复计算得到逐字节相同的输出；零值时取系统时间。
	Now time.Time
}
