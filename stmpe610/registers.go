package stmpe610

// Register addresses and bitfields of the STMPE610.
const (
	DefaultAddress = 0x41

	// Value of the CHIP_ID register pair on a genuine device.
	ChipID = 0x0811

	// Number of samples the FIFO holds.
	FIFODepth = 128

	REG_CHIP_ID = 0x00
	REG_ID_VER  = 0x02

	REG_SYS_CTRL1       = 0x03
	SYS_CTRL1_RESET     = 0x02
	SYS_CTRL1_HIBERNATE = 0x01

	REG_SYS_CTRL2 = 0x04

	REG_SPI_CFG = 0x08

	REG_INT_CTRL          = 0x09
	INT_CTRL_POL_HIGH     = 0x04
	INT_CTRL_POL_LOW      = 0x00
	INT_CTRL_EDGE         = 0x02
	INT_CTRL_LEVEL        = 0x00
	INT_CTRL_ENABLE       = 0x01
	INT_CTRL_DISABLE      = 0x00
	REG_INT_EN            = 0x0A
	INT_EN_TOUCHDET       = 0x01
	INT_EN_FIFOTH         = 0x02
	INT_EN_FIFOOF         = 0x04
	INT_EN_FIFOFULL       = 0x08
	INT_EN_FIFOEMPTY      = 0x10
	INT_EN_ADC            = 0x40
	INT_EN_GPIO           = 0x80
	REG_INT_STA           = 0x0B
	INT_STA_TOUCHDET      = 0x01
	INT_STA_FIFOTH        = 0x02
	INT_STA_FIFOOF        = 0x04
	INT_STA_FIFOFULL      = 0x08
	INT_STA_FIFOEMPTY     = 0x10
	REG_ADC_CTRL1         = 0x20
	ADC_CTRL1_12BIT       = 0x08
	ADC_CTRL1_10BIT       = 0x00
	REG_ADC_CTRL2         = 0x21
	ADC_CTRL2_1_625MHZ    = 0x00
	ADC_CTRL2_3_25MHZ     = 0x01
	ADC_CTRL2_6_5MHZ      = 0x02
	REG_TSC_CTRL          = 0x40
	TSC_CTRL_EN           = 0x01
	TSC_CTRL_XYZ          = 0x00
	TSC_CTRL_XY           = 0x02
	TSC_CTRL_TOUCHED      = 0x80
	REG_TSC_CFG           = 0x41
	TSC_CFG_1SAMPLE       = 0x00
	TSC_CFG_2SAMPLE       = 0x40
	TSC_CFG_4SAMPLE       = 0x80
	TSC_CFG_8SAMPLE       = 0xC0
	TSC_CFG_DELAY_10US    = 0x00
	TSC_CFG_DELAY_50US    = 0x08
	TSC_CFG_DELAY_100US   = 0x10
	TSC_CFG_DELAY_500US   = 0x18
	TSC_CFG_DELAY_1MS     = 0x20
	TSC_CFG_DELAY_5MS     = 0x28
	TSC_CFG_DELAY_10MS    = 0x30
	TSC_CFG_DELAY_50MS    = 0x38
	TSC_CFG_SETTLE_10US   = 0x00
	TSC_CFG_SETTLE_100US  = 0x01
	TSC_CFG_SETTLE_500US  = 0x02
	TSC_CFG_SETTLE_1MS    = 0x03
	TSC_CFG_SETTLE_5MS    = 0x04
	TSC_CFG_SETTLE_10MS   = 0x05
	TSC_CFG_SETTLE_50MS   = 0x06
	TSC_CFG_SETTLE_100MS  = 0x07
	REG_FIFO_TH           = 0x4A
	REG_FIFO_STA          = 0x4B
	FIFO_STA_RESET        = 0x01
	FIFO_STA_THTRIG       = 0x10
	FIFO_STA_EMPTY        = 0x20
	FIFO_STA_FULL         = 0x40
	FIFO_STA_OFLOW        = 0x80
	REG_FIFO_SIZE         = 0x4C
	REG_TSC_DATA_X        = 0x4D
	REG_TSC_DATA_Y        = 0x4F
	REG_TSC_FRACTION_Z    = 0x56
	REG_TSC_DATA_Z        = 0x51
	REG_TSC_I_DRIVE       = 0x58
	TSC_I_DRIVE_20MA      = 0x00
	TSC_I_DRIVE_50MA      = 0x01
	REG_TSC_SHIELD        = 0x59
	REG_TSC_DATA_XYZ_AUTO = 0xD7

	REG_GPIO_SET_PIN   = 0x10
	REG_GPIO_CLR_PIN   = 0x11
	REG_GPIO_DIR       = 0x13
	REG_GPIO_ALT_FUNCT = 0x17
)

// spiReadFlag marks an SPI register access as a read.
const spiReadFlag = 0x80

// flushRegisters is the number of registers read after reset to drain
// latched power-on state.
const flushRegisters = 65
