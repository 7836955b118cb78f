// swapchain_helper.go
package vulkango

import "errors"

type SwapchainSupportDetails struct {
	Capabilities SurfaceCapabilitiesKHR
	Formats      []SurfaceFormatKHR
	PresentModes []PresentModeKHR
}

// Swapchain images are written by transfer copies, never rendered to.
const SwapchainImageUsage = IMAGE_USAGE_TRANSFER_DST_BIT | IMAGE_USAGE_COLOR_ATTACHMENT_BIT

func (device PhysicalDevice) QuerySwapchainSupport(surface SurfaceKHR) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, err = device.GetSurfaceCapabilitiesKHR(surface)
	if err != nil {
		return details, err
	}

	details.Formats, err = device.GetSurfaceFormatsKHR(surface)
	if err != nil {
		return details, err
	}

	details.PresentModes, err = device.GetSurfacePresentModesKHR(surface)
	if err != nil {
		return details, err
	}

	return details, nil
}

// ChooseSurfaceFormat prefers a format whose channel order matches an RGBA8
// canvas so a raw image copy needs no swizzle.
func ChooseSurfaceFormat(availableFormats []SurfaceFormatKHR) SurfaceFormatKHR {
	for _, want := range []Format{FORMAT_R8G8B8A8_UNORM, FORMAT_B8G8R8A8_UNORM} {
		for _, format := range availableFormats {
			if format.Format == want && format.ColorSpace == COLOR_SPACE_SRGB_NONLINEAR_KHR {
				return format
			}
		}
	}

	// Fallback to first available
	return availableFormats[0]
}

// FIFO is the only mode every implementation must support and it paces
// presentation to vblank.
func ChoosePresentMode(availableModes []PresentModeKHR) PresentModeKHR {
	return PRESENT_MODE_FIFO_KHR
}

func ChooseSwapExtent(capabilities SurfaceCapabilitiesKHR, windowWidth, windowHeight uint32) Extent2D {
	// If width is max uint32, we can choose our own extent
	if capabilities.CurrentExtent.Width != 0xFFFFFFFF {
		return capabilities.CurrentExtent
	}

	// Otherwise clamp to min/max
	extent := Extent2D{
		Width:  windowWidth,
		Height: windowHeight,
	}

	if extent.Width < capabilities.MinImageExtent.Width {
		extent.Width = capabilities.MinImageExtent.Width
	}
	if extent.Width > capabilities.MaxImageExtent.Width {
		extent.Width = capabilities.MaxImageExtent.Width
	}

	if extent.Height < capabilities.MinImageExtent.Height {
		extent.Height = capabilities.MinImageExtent.Height
	}
	if extent.Height > capabilities.MaxImageExtent.Height {
		extent.Height = capabilities.MaxImageExtent.Height
	}

	return extent
}

// ChooseImageCount asks for at least two images, or the surface minimum if
// that is higher.
func ChooseImageCount(capabilities SurfaceCapabilitiesKHR) uint32 {
	imageCount := capabilities.MinImageCount
	if imageCount < 2 {
		imageCount = 2
	}

	// Don't exceed maximum (0 means no limit)
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	return imageCount
}

type SwapchainInfo struct {
	Swapchain SwapchainKHR
	Format    Format
	Extent    Extent2D
	Images    []Image
}

// CreateSwapchain builds a swapchain whose images can receive transfer
// copies, and fetches those images.
func CreateSwapchain(
	device Device,
	physicalDevice PhysicalDevice,
	surface SurfaceKHR,
	windowWidth, windowHeight uint32,
) (SwapchainInfo, error) {
	support, err := physicalDevice.QuerySwapchainSupport(surface)
	if err != nil {
		return SwapchainInfo{}, err
	}

	if len(support.Formats) == 0 {
		return SwapchainInfo{}, errors.New("no surface formats available")
	}

	if len(support.PresentModes) == 0 {
		return SwapchainInfo{}, errors.New("no present modes available")
	}

	if support.Capabilities.SupportedUsageFlags&IMAGE_USAGE_TRANSFER_DST_BIT == 0 {
		return SwapchainInfo{}, errors.New("surface does not support transfer destination images")
	}

	surfaceFormat := ChooseSurfaceFormat(support.Formats)
	presentMode := ChoosePresentMode(support.PresentModes)
	extent := ChooseSwapExtent(support.Capabilities, windowWidth, windowHeight)
	imageCount := ChooseImageCount(support.Capabilities)

	swapchain, err := device.CreateSwapchainKHR(&SwapchainCreateInfoKHR{
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       SwapchainImageUsage,
		ImageSharingMode: SHARING_MODE_EXCLUSIVE,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   COMPOSITE_ALPHA_OPAQUE_BIT_KHR,
		PresentMode:      presentMode,
		Clipped:          true,
		OldSwapchain:     SwapchainKHR{},
	})
	if err != nil {
		return SwapchainInfo{}, err
	}

	images, err := device.GetSwapchainImagesKHR(swapchain)
	if err != nil {
		device.DestroySwapchainKHR(swapchain)
		return SwapchainInfo{}, err
	}

	return SwapchainInfo{
		Swapchain: swapchain,
		Format:    surfaceFormat.Format,
		Extent:    extent,
		Images:    images,
	}, nil
}
