package analyzer

import (
	"net"

	"go-phishguard/pkg/logger"
	"go-phishguard/pkg/models"

	"github.com/oschwald/geoip2-golang"
)

// HostLookup 查询IP主机的归属信息
type HostLookup interface {
	Lookup(host string) *models.HostInfo
}

// GeoHostLookup 基于 GeoIP City/ASN 库的归属查询，任一库可为 nil
type GeoHostLookup struct {
	geoIP *geoip2.Reader
	asnDB *geoip2.Reader
}

func NewGeoHostLookup(geoIP, asnDB *geoip2.Reader) *GeoHostLookup {
	return &GeoHostLookup{geoIP: geoIP, asnDB: asnDB}
}

// OpenGeoHostLookup 打开配置的数据库文件，路径为空则跳过对应库
func OpenGeoHostLookup(cityPath, asnPath string) (*GeoHostLookup, error) {
	l := &GeoHostLookup{}
	if cityPath != "" {
		r, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, err
		}
		l.geoIP = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.asnDB = r
	}
	return l, nil
}

// Lookup 非IP主机或查询不到任何信息时返回 nil
func (l *GeoHostLookup) Lookup(host string) *models.HostInfo {
	if l == nil || (l.geoIP == nil && l.asnDB == nil) {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}

	info := &models.HostInfo{}
	if l.geoIP != nil {
		city, err := l.geoIP.City(ip)
		if err != nil {
			logger.Log.Errorf("GeoIP查询失败: %v", err)
		} else {
			info.Country = city.Country.IsoCode
		}
	}
	if l.asnDB != nil {
		asn, err := l.asnDB.ASN(ip)
		if err != nil {
			logger.Log.Errorf("ASN查询失败: %v", err)
		} else {
			info.ASN = asn.AutonomousSystemNumber
			info.ASNOrg = asn.AutonomousSystemOrganization
		}
	}

	if *info == (models.HostInfo{}) {
		return nil
	}
	return info
}

func (l *GeoHostLookup) Close() {
	if l.geoIP != nil {
		l.geoIP.Close()
	}
	if l.asnDB != nil {
		l.asnDB.Close()
	}
}
