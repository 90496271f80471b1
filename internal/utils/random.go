package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/shopspring/decimal"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

// GenerateRandomChineseName 返回姓和名两部分
func GenerateRandomChineseName() (string, string) {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname, name
}

var digits = "0123456789"

// GenerateEmailLocalPart 由中文姓名的拼音生成邮箱前缀，例如 "张伟" -> "weizhang42"
func GenerateEmailLocalPart(surname, name string) string {
	localPart := strings.Join(pinyin.LazyConvert(name, nil), "") + strings.Join(pinyin.LazyConvert(surname, nil), "")

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		localPart += string(digits[rand.Intn(len(digits))])
	}

	return localPart
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

// GenerateRandomSalary 在 [min, max) 之间生成一个以百为单位的薪资
func GenerateRandomSalary(min, max int64) decimal.Decimal {
	hundreds := (max - min) / 100
	if hundreds <= 0 {
		return decimal.NewFromInt(min)
	}
	return decimal.NewFromInt(min + rand.Int63n(hundreds)*100)
}

// GenerateRandomBirthDate 生成年龄在 22 到 60 岁之间的生日
func GenerateRandomBirthDate(now time.Time) time.Time {
	age := 22 + rand.Intn(39)
	dayOfYear := rand.Intn(365)
	birth := time.Date(now.Year()-age, time.January, 1, 0, 0, 0, 0, time.UTC)
	return birth.AddDate(0, 0, dayOfYear)
}
