package util

import (
	"encoding/binary"
	"math"
	"strconv"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// Float32sToBytes 将向量编码为小端字节序列，用于存入 BLOB 列
func Float32sToBytes(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// BytesToFloat32s 从 BLOB 列还原向量，长度非 4 的倍数时丢弃尾部残余
func BytesToFloat32s(buf []byte) []float32 {
	n := len(buf) / 4
	if n == 0 {
		return nil
	}
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
