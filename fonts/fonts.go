package fonts

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultName 是渲染器在模板未指定字体时使用的默认字体文件名，
// 需要能覆盖中文字形。
const DefaultName = "NotoSansSC-Regular.ttf"

// searchDirs 列出字体文件的查找目录，按顺序命中即止。
// VELLUM_FONTS 环境变量可以追加一个最高优先级的目录。
func searchDirs() []string {
	dirs := []string{}
	if env := os.Getenv("VELLUM_FONTS"); env != "" {
		dirs = append(dirs, env)
	}
	return append(dirs,
		"assets/fonts",
		filepath.Join("assets", "fonts", "Noto_Sans_SC", "static"),
	)
}

// Load 读取字体文件。name 可以是绝对/相对路径，也可以是查找目录下的
// 裸文件名。
func Load(name string) ([]byte, error) {
	if data, err := os.ReadFile(name); err == nil {
		return data, nil
	}
	for _, dir := range searchDirs() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("找不到字体文件 %s", name)
}
