package session

type messages struct {
	serviceConnected   string
	serviceUnavailable string
	takingPhoto        string
	captureFailed      string
	analyzing          string
	analysisFailed     string
	retake             string
	flashOn            string
	tooDark            string
	recognizing        string
	recognitionFailed  string
	recognitionRetry   string
}

var catalog = map[string]messages{
	"en": {
		serviceConnected:   "Service connected",
		serviceUnavailable: "Cannot reach the recognition service, check the connection",
		takingPhoto:        "Taking photo",
		captureFailed:      "Capture failed, please retry",
		analyzing:          "Analyzing image",
		analysisFailed:     "Image analysis failed, please retry",
		retake:             "Please retake the photo",
		flashOn:            "Insufficient light, turning on flash",
		tooDark:            "Still too dark, please move to better light and retake",
		recognizing:        "Recognizing drug information",
		recognitionFailed:  "Recognition failed",
		recognitionRetry:   "Recognition failed, please retry",
	},
	"zh": {
		serviceConnected:   "服务连接正常",
		serviceUnavailable: "无法连接识别服务，请检查网络",
		takingPhoto:        "正在拍照",
		captureFailed:      "拍照失败，请重试",
		analyzing:          "正在分析图像",
		analysisFailed:     "图像分析失败，请重试",
		retake:             "请重新拍摄",
		flashOn:            "光线不足，正在开启闪光灯",
		tooDark:            "光线仍然不足，请到明亮处重新拍摄",
		recognizing:        "正在识别药品信息",
		recognitionFailed:  "识别失败",
		recognitionRetry:   "识别失败，请重试",
	},
}

func messagesFor(locale string) messages {
	if m, ok := catalog[locale]; ok {
		return m
	}
	return catalog["en"]
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
