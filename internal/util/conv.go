package util

import (
	"errors"
	"strconv"
)

var ErrBadID = errors.New("无效的ID")

// ParseID 解析路径/查询参数中的数字主键。
// 课程等自增 ID 走这里；试卷和答题记录用 UUID，直接取字符串
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrBadID
	}
	return uint(id), nil
}
